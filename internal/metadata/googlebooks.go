package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrUpstreamUnavailable covers network failures, timeouts and non-2xx answers.
	ErrUpstreamUnavailable = errors.New("metadata upstream unavailable")
	// ErrMalformedResponse means the catalog answered with a body that is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed metadata response")
	// ErrNoMatch means the catalog knows no volume for the ISBN.
	ErrNoMatch = errors.New("no metadata match")
)

const (
	DefaultTimeout = 10 * time.Second
	userAgent      = "booktracker/1.0 (https://github.com/mrlokans/booktracker)"
)

// Volume is the subset of a catalog volume the fetcher uses.
type Volume struct {
	Title       string
	Authors     []string
	Description string
	Thumbnail   string
	Categories  []string
}

//go:generate go run github.com/golang/mock/mockgen -source=googlebooks.go -destination=mocks/mock_catalog.go -package=mocks

// Catalog looks books up by ISBN.
type Catalog interface {
	LookupISBN(ctx context.Context, isbn string) (*Volume, error)
}

type GoogleBooksOptions struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables limiting
	Logger            *zap.Logger
}

// GoogleBooksClient queries the Google Books volumes API.
type GoogleBooksClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	log        *zap.Logger
}

func NewGoogleBooksClient(opts GoogleBooksOptions) *GoogleBooksClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &GoogleBooksClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		limiter:    rate.NewLimiter(limit, 1),
		log:        log.Named("googlebooks"),
	}
}

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo volumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

type volumeInfo struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	ImageLinks  struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"imageLinks"`
}

// LookupISBN issues one GET for the ISBN and returns the first volume.
func (c *GoogleBooksClient) LookupISBN(ctx context.Context, isbn string) (*Volume, error) {
	ctx, span := tracer.Start(ctx, "googlebooks.LookupISBN",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("book.isbn", isbn)))
	defer span.End()

	vol, err := c.lookup(ctx, isbn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return vol, err
}

func (c *GoogleBooksClient) lookup(ctx context.Context, isbn string) (*Volume, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUpstreamUnavailable, err)
	}

	query := url.Values{}
	query.Set("q", "isbn:"+isbn)
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s/books/v1/volumes?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(body.Items) == 0 {
		return nil, fmt.Errorf("%w: isbn %s", ErrNoMatch, isbn)
	}

	info := body.Items[0].VolumeInfo
	c.log.Debug("volume found", zap.String("isbn", isbn), zap.String("title", info.Title))

	return &Volume{
		Title:       info.Title,
		Authors:     info.Authors,
		Description: info.Description,
		Thumbnail:   info.ImageLinks.Thumbnail,
		Categories:  info.Categories,
	}, nil
}
