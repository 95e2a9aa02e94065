package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts GoogleBooksOptions) *GoogleBooksClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts.BaseURL = server.URL
	return NewGoogleBooksClient(opts)
}

func TestLookupISBN_Success(t *testing.T) {
	var gotQuery, gotKey, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"totalItems": 1,
			"items": [{"volumeInfo": {
				"title": "Dune",
				"authors": ["Frank Herbert", "Brian Herbert"],
				"description": "Desert planet.",
				"categories": ["Fiction", "Classics"],
				"imageLinks": {"thumbnail": "http://books.example/dune.jpg"}
			}}]
		}`))
	}, GoogleBooksOptions{APIKey: "secret"})

	vol, err := client.LookupISBN(context.Background(), "9780441172719")
	require.NoError(t, err)

	assert.Equal(t, "/books/v1/volumes", gotPath)
	assert.Equal(t, "isbn:9780441172719", gotQuery)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "Dune", vol.Title)
	assert.Equal(t, []string{"Frank Herbert", "Brian Herbert"}, vol.Authors)
	assert.Equal(t, "Desert planet.", vol.Description)
	assert.Equal(t, "http://books.example/dune.jpg", vol.Thumbnail)
	assert.Equal(t, []string{"Fiction", "Classics"}, vol.Categories)
}

func TestLookupISBN_NoKeyWhenUnset(t *testing.T) {
	var hasKey bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hasKey = r.URL.Query().Has("key")
		_, _ = w.Write([]byte(`{"items":[{"volumeInfo":{"title":"T"}}]}`))
	}, GoogleBooksOptions{})

	_, err := client.LookupISBN(context.Background(), "0306406152")
	require.NoError(t, err)
	assert.False(t, hasKey)
}

func TestLookupISBN_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "empty items",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"totalItems":0}`)) },
			wantErr: ErrNoMatch,
		},
		{
			name:    "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`<html>oops`)) },
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantErr: ErrUpstreamUnavailable,
		},
		{
			name:    "rate limited upstream",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			wantErr: ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler, GoogleBooksOptions{})
			_, err := client.LookupISBN(context.Background(), "9780306406157")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLookupISBN_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}, GoogleBooksOptions{Timeout: 50 * time.Millisecond})

	_, err := client.LookupISBN(context.Background(), "9780306406157")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestLookupISBN_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := NewGoogleBooksClient(GoogleBooksOptions{BaseURL: baseURL})
	_, err := client.LookupISBN(context.Background(), "9780306406157")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestLookupISBN_CancelledWhileRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"volumeInfo":{"title":"T"}}]}`))
	}, GoogleBooksOptions{RequestsPerSecond: 0.01})

	_, err := client.LookupISBN(context.Background(), "9780306406157")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.LookupISBN(ctx, "9780306406157")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestVolumeUpdate_Defaults(t *testing.T) {
	u := volumeUpdate(&Volume{})

	assert.Equal(t, "Unknown", *u.Title)
	assert.Equal(t, "Unknown", *u.Author)
	assert.Equal(t, DefaultDescription, *u.Description)
	assert.Equal(t, DefaultCoverURL, *u.CoverImageURL)
	assert.Equal(t, DefaultGenre, *u.Genre)
}
