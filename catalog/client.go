package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Failure reasons reported to the Recorder.
const (
	ReasonInvalidInput = "invalid_input"
	ReasonTransport    = "transport"
	ReasonParse        = "parse"
)

// Recorder observes catalog searches. *metrics.Collector implements it.
type Recorder interface {
	RecordSearch(category, field string)
	RecordSearchFailure(reason string)
	RecordRecords(count int)
	RecordFetchLatency(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordSearch(string, string)      {}
func (nopRecorder) RecordSearchFailure(string)       {}
func (nopRecorder) RecordRecords(int)                {}
func (nopRecorder) RecordFetchLatency(time.Duration) {}

// Client runs best-effort searches against the remote catalog. Searches never
// return an error: invalid input, transport failures and unparseable
// responses are logged and degrade to an empty result.
type Client struct {
	builder  QueryBuilder
	fetcher  Fetcher
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewClient composes a query builder, a fetch collaborator and the parser.
func NewClient(builder QueryBuilder, fetcher Fetcher, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if fetcher == nil {
		fetcher = FetcherFunc(func(context.Context, string) ([]byte, error) {
			return nil, fmt.Errorf("%w: no fetcher configured", ErrTransportFailure)
		})
	}
	c := &Client{
		builder:  builder,
		fetcher:  fetcher,
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchByAuthor searches creators.
func (c *Client) SearchByAuthor(ctx context.Context, category Category, author string) []Record {
	return c.Search(ctx, category, FieldAuthor, author)
}

// SearchByISBN searches for an exact ISBN.
func (c *Client) SearchByISBN(ctx context.Context, category Category, isbn string) []Record {
	return c.Search(ctx, category, FieldISBN, isbn)
}

// SearchByTitle searches titles.
func (c *Client) SearchByTitle(ctx context.Context, category Category, title string) []Record {
	return c.Search(ctx, category, FieldTitle, title)
}

// SearchByDate searches publication dates.
func (c *Client) SearchByDate(ctx context.Context, category Category, date string) []Record {
	return c.Search(ctx, category, FieldDate, date)
}

// Search builds the query, fetches it and parses the response. The returned
// slice is never nil.
func (c *Client) Search(ctx context.Context, category Category, field Field, term string) []Record {
	log := c.logger.With(
		slog.String("search_id", uuid.NewString()),
		slog.String("category", category.String()),
		slog.String("field", field.String()),
		slog.String("term", term),
	)

	if strings.TrimSpace(term) == "" || category.String() == "" {
		c.recorder.RecordSearchFailure(ReasonInvalidInput)
		log.Warn("catalog search rejected: empty term or unknown category")
		return []Record{}
	}

	url, err := c.builder.Build(category, field, term)
	if err != nil {
		c.recorder.RecordSearchFailure(ReasonInvalidInput)
		log.Warn("catalog search rejected", slog.String("error", err.Error()))
		return []Record{}
	}
	c.recorder.RecordSearch(category.String(), field.String())

	start := time.Now()
	body, err := c.fetcher.Fetch(ctx, url)
	c.recorder.RecordFetchLatency(time.Since(start))
	if err != nil {
		c.recorder.RecordSearchFailure(ReasonTransport)
		log.Error("catalog fetch failed", slog.String("error", err.Error()))
		return []Record{}
	}

	records, err := Parse(body)
	if err != nil {
		c.recorder.RecordSearchFailure(ReasonParse)
		log.Error("catalog response could not be parsed",
			slog.String("error", err.Error()),
			slog.Int("body_bytes", len(body)),
		)
		return []Record{}
	}

	c.recorder.RecordRecords(len(records))
	log.Debug("catalog search completed", slog.Int("records", len(records)))
	return records
}
