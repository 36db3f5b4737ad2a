// Package enrichment drives one bookmark through
// fetch, clean, convert, summarize, tag and persist.
//
// Status contract:
//   - PENDING -> PROCESSING is written before any network call.
//   - Any stage error halts the run and writes FAILED with a truncated
//     ai_error and the placeholder description. Title and tags stay as
//     they were.
//   - COMPLETED replaces title, description and the full tag set in one
//     transaction.
//   - A missing bookmark, or one with AI disabled, is a silent no-op.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/marks/internal/content"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// Stage names one step of the pipeline. Values are used as log fields,
// metric labels and ai_error prefixes.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageClean     Stage = "clean"
	StageConvert   Stage = "convert"
	StageSummarize Stage = "summarize"
	StageTags      Stage = "tags"
	StageReconcile Stage = "reconcile"
	StagePersist   Stage = "persist"
)

// Stages in execution order. StagePersist runs last and is handled apart.
var Stages = []Stage{StageFetch, StageClean, StageConvert, StageSummarize, StageTags, StageReconcile}

// ErrInterrupted is returned when the parent context ends mid-run. The
// bookmark is left PROCESSING and the job must be redelivered.
var ErrInterrupted = errors.New("enrichment interrupted")

// ─────────────────────────────
// Collaborators
// ─────────────────────────────

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*content.FetchResult, error)
}

type Cleaner interface {
	Clean(raw []byte, contentType, pageURL string) (*content.CleanResult, error)
}

type Converter interface {
	Convert(cleanedHTML string) (string, error)
}

// Model is the language model boundary.
type Model interface {
	Summarize(ctx context.Context, text string) (string, error)
	GenerateTags(ctx context.Context, text string) ([]string, error)
}

// TagResolver maps free-text names onto tag rows.
type TagResolver interface {
	Resolve(ctx context.Context, names []string) ([]domain.Tag, error)
}

// Store is the slice of store.Store the orchestrator writes through.
type Store interface {
	GetBookmark(ctx context.Context, id int64) (*domain.Bookmark, error)
	MarkProcessing(ctx context.Context, id int64) error
	CompleteEnrichment(ctx context.Context, id int64, e store.Enrichment) error
	FailEnrichment(ctx context.Context, id int64, aiError string) error
}

// Deps bundles the orchestrator collaborators.
type Deps struct {
	Store     Store
	Fetcher   Fetcher
	Cleaner   Cleaner
	Converter Converter
	Model     Model
	Tags      TagResolver
	Log       logger.Logger
	Metrics   *Metrics
}

// Orchestrator runs enrichment jobs. It is safe for concurrent use; each
// call to Process owns its own pipeline state.
type Orchestrator struct {
	d          Deps
	jobTimeout time.Duration
}

func NewOrchestrator(d Deps, jobTimeout time.Duration) *Orchestrator {
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	return &Orchestrator{d: d, jobTimeout: jobTimeout}
}

// run carries stage outputs from one stage to the next.
type run struct {
	bookmark *domain.Bookmark
	page     *content.FetchResult
	cleaned  *content.CleanResult
	text     string
	summary  string
	names    []string
	tags     []domain.Tag
}

// Process executes one job. A nil return means the job is done, whatever
// the bookmark's final status; the caller acks it. A non-nil error means
// the outcome was not recorded and the job should be redelivered.
func (o *Orchestrator) Process(ctx context.Context, job domain.Job) error {
	log := o.d.Log.With(
		logger.Int64("bookmark_id", job.BookmarkID),
		logger.Int64("user_id", job.UserID),
		logger.String("correlation_id", job.Correlation()),
	)

	b, err := o.d.Store.GetBookmark(ctx, job.BookmarkID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info("bookmark no longer exists, nothing to enrich")
		o.d.Metrics.job(OutcomeMissing)
		return nil
	case err != nil:
		o.d.Metrics.job(OutcomeError)
		return fmt.Errorf("failed to load bookmark %d: %w", job.BookmarkID, err)
	}

	if job.UserID != 0 && !b.OwnedBy(job.UserID) {
		log.Warn("job user does not own bookmark, dropping", logger.Int64("owner_id", b.UserID))
		o.d.Metrics.job(OutcomeSkipped)
		return nil
	}
	if !b.Enrichable() {
		log.Debug("enrichment disabled for bookmark", logger.String("ai_status", string(b.AIStatus)))
		o.d.Metrics.job(OutcomeSkipped)
		return nil
	}

	// durable pickup, before any network call
	if err := o.d.Store.MarkProcessing(ctx, b.ID); err != nil {
		return o.writeFailed(log, err, "mark processing")
	}
	log.Info("enrichment started", logger.String("url", b.URL))

	jobCtx := ctx
	if o.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, o.jobTimeout)
		defer cancel()
	}

	r := &run{bookmark: b}
	for _, s := range Stages {
		started := time.Now()
		err := o.runStage(jobCtx, s, r)
		o.d.Metrics.observeStage(s, time.Since(started))
		if err != nil {
			return o.fail(ctx, log, b.ID, s, err)
		}
	}

	started := time.Now()
	err = o.d.Store.CompleteEnrichment(ctx, b.ID, store.Enrichment{
		Title:       r.cleaned.Title,
		Description: r.summary,
		Tags:        r.tags,
	})
	o.d.Metrics.observeStage(StagePersist, time.Since(started))

	switch {
	case err == nil:
		log.Info("enrichment completed",
			logger.String("title", r.cleaned.Title),
			logger.Strings("tags", tagNames(r.tags)))
		o.d.Metrics.job(OutcomeCompleted)
		return nil
	case errors.Is(err, store.ErrNotFound):
		log.Info("bookmark deleted during enrichment, result discarded")
		o.d.Metrics.job(OutcomeMissing)
		return nil
	case errors.Is(err, store.ErrStatusConflict):
		log.Warn("bookmark left PROCESSING during enrichment, result discarded", logger.Error(err))
		o.d.Metrics.job(OutcomeConflict)
		return nil
	default:
		return o.fail(ctx, log, b.ID, StagePersist, err)
	}
}

// runStage is the pipeline's single dispatch point.
func (o *Orchestrator) runStage(ctx context.Context, s Stage, r *run) error {
	var err error
	switch s {
	case StageFetch:
		r.page, err = o.d.Fetcher.Fetch(ctx, r.bookmark.URL)

	case StageClean:
		finalURL := r.page.FinalURL
		if finalURL == "" {
			finalURL = r.bookmark.URL
		}
		r.cleaned, err = o.d.Cleaner.Clean(r.page.Body, r.page.ContentType, finalURL)

	case StageConvert:
		r.text, err = o.d.Converter.Convert(r.cleaned.HTML)

	case StageSummarize:
		r.summary, err = o.d.Model.Summarize(ctx, r.text)

	case StageTags:
		r.names, err = o.d.Model.GenerateTags(ctx, r.text)

	case StageReconcile:
		r.tags, err = o.d.Tags.Resolve(ctx, r.names)

	default:
		err = fmt.Errorf("unknown stage %q", s)
	}
	return err
}

// fail records a stage failure. When the parent context is already done
// the run was interrupted by shutdown: nothing is written.
func (o *Orchestrator) fail(ctx context.Context, log logger.Logger, id int64, s Stage, cause error) error {
	kind := domain.KindOf(cause)
	log = log.With(
		logger.String("stage", string(s)),
		logger.String("error_kind", string(kind)),
		logger.Error(cause),
	)

	if ctx.Err() != nil {
		log.Warn("enrichment interrupted, leaving bookmark for redelivery")
		o.d.Metrics.job(OutcomeInterrupted)
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}

	o.d.Metrics.stageFailed(s, kind)
	log.Error("enrichment stage failed")

	err := o.d.Store.FailEnrichment(ctx, id, domain.FailureMessage(string(s), cause))
	switch {
	case err == nil:
		o.d.Metrics.job(OutcomeFailed)
		return nil
	case errors.Is(err, store.ErrNotFound):
		log.Info("bookmark deleted during enrichment, failure discarded")
		o.d.Metrics.job(OutcomeMissing)
		return nil
	case errors.Is(err, store.ErrStatusConflict):
		log.Warn("bookmark left PROCESSING during enrichment, failure discarded")
		o.d.Metrics.job(OutcomeConflict)
		return nil
	default:
		return o.writeFailed(log, err, "record failure")
	}
}

func (o *Orchestrator) writeFailed(log logger.Logger, err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		log.Info("bookmark no longer exists, nothing to enrich")
		o.d.Metrics.job(OutcomeMissing)
		return nil
	}
	if errors.Is(err, store.ErrStatusConflict) {
		log.Info("bookmark is not enrichable", logger.Error(err))
		o.d.Metrics.job(OutcomeSkipped)
		return nil
	}
	o.d.Metrics.job(OutcomeError)
	return fmt.Errorf("failed to %s: %w", what, err)
}

func tagNames(tags []domain.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}
