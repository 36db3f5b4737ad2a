package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

func TestFetcherSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "marks-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>Hi</title></html>"))
	}))
	defer ts.Close()

	f := NewFetcher(FetcherOptions{Timeout: time.Second, UserAgent: "marks-test"})
	res, err := f.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", res.ContentType)
	assert.Contains(t, string(res.Body), "<title>Hi</title>")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestFetcherFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("moved"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res, err := NewFetcher(FetcherOptions{Timeout: time.Second}).Fetch(context.Background(), ts.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/new", res.FinalURL)
	assert.Equal(t, "moved", string(res.Body))
}

func TestFetcherErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/slow":
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
		}
	}))
	defer ts.Close()

	f := NewFetcher(FetcherOptions{Timeout: 100 * time.Millisecond, MaxBytes: 1024})

	tests := []struct {
		name       string
		url        string
		wantStatus int
	}{
		{"non-2xx", ts.URL + "/missing", http.StatusNotFound},
		{"timeout", ts.URL + "/slow", 0},
		{"oversized body", ts.URL + "/big", 0},
		{"unsupported scheme", "ftp://example.com/file", 0},
		{"relative url", "/just/a/path", 0},
		{"connection refused", "http://127.0.0.1:1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), tt.url)
			require.Error(t, err)

			var fetchErr *domain.FetchError
			require.True(t, errors.As(err, &fetchErr), "expected *domain.FetchError, got %T", err)
			assert.Equal(t, tt.url, fetchErr.URL)
			assert.Equal(t, tt.wantStatus, fetchErr.StatusCode)
			assert.Equal(t, domain.KindFetch, domain.KindOf(err))
		})
	}
}

func TestFetcherHonoursContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(FetcherOptions{Timeout: time.Second}).Fetch(ctx, ts.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

