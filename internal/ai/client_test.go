package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// fakeEndpoint serves /v1/chat/completions and records the last request.
type fakeEndpoint struct {
	mu       sync.Mutex
	last     openai.ChatCompletionRequest
	auth     string
	status   int
	content  string
	noChoice bool
	delay    time.Duration
}

func (f *fakeEndpoint) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req openai.ChatCompletionRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.last = req
		f.auth = r.Header.Get("Authorization")
		status, content, noChoice, delay := f.status, f.content, f.noChoice, f.delay
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
			return
		}

		resp := openai.ChatCompletionResponse{ID: "cmpl-1", Object: "chat.completion", Model: req.Model}
		if !noChoice {
			resp.Choices = []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newTestClient(t *testing.T, f *fakeEndpoint, timeout time.Duration) *Client {
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)

	return NewClient(Config{
		BaseURL:     ts.URL + "/v1/",
		APIKey:      "sk-test",
		Model:       "test-model",
		Timeout:     timeout,
		MaxTokens:   4096,
		Temperature: 0.3,
		InputChars:  100,
	})
}

func TestSummarize(t *testing.T) {
	f := &fakeEndpoint{content: "  A dense summary.  "}
	c := newTestClient(t, f, time.Second)

	long := strings.Repeat("é", 500)
	out, err := c.Summarize(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, "A dense summary.", out)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "Bearer sk-test", f.auth)
	assert.Equal(t, "test-model", f.last.Model)
	assert.Equal(t, 4096, f.last.MaxTokens)
	assert.InDelta(t, 0.3, f.last.Temperature, 0.0001)
	require.Len(t, f.last.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, f.last.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, f.last.Messages[1].Role)

	user := f.last.Messages[1].Content
	require.True(t, strings.HasPrefix(user, summaryUserPrefix))
	assert.Equal(t, 100, utf8.RuneCountInString(strings.TrimPrefix(user, summaryUserPrefix)))
}

func TestGenerateTags(t *testing.T) {
	f := &fakeEndpoint{content: "golang, concurrency , , web-servers,\ntesting"}
	c := newTestClient(t, f, time.Second)

	tags, err := c.GenerateTags(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "concurrency", "web-servers", "testing"}, tags)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.True(t, strings.HasPrefix(f.last.Messages[1].Content, tagsUserPrefix))
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeEndpoint
	}{
		{"server error", &fakeEndpoint{status: http.StatusInternalServerError}},
		{"rate limited", &fakeEndpoint{status: http.StatusTooManyRequests}},
		{"no choices", &fakeEndpoint{noChoice: true}},
		{"blank content", &fakeEndpoint{content: "   "}},
		{"timeout", &fakeEndpoint{content: "late", delay: 500 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.f, 100*time.Millisecond)

			_, err := c.Summarize(context.Background(), "text")
			require.Error(t, err)
			assert.Equal(t, domain.KindAI, domain.KindOf(err))

			_, err = c.GenerateTags(context.Background(), "text")
			require.Error(t, err)
			assert.Equal(t, domain.KindAI, domain.KindOf(err))
		})
	}
}

func TestGenerateTagsOnlySeparators(t *testing.T) {
	c := newTestClient(t, &fakeEndpoint{content: ", ,,"}, time.Second)
	tags, err := c.GenerateTags(context.Background(), "text")
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "", Excerpt("abc", 0))
	assert.Equal(t, "ab", Excerpt("abc", 2))
	assert.Equal(t, "abc", Excerpt("abc", 10))
	assert.Equal(t, "日本", Excerpt("日本語", 2))
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, ParseTags(" a ,, b c ,"))
	assert.Empty(t, ParseTags(""))
}
