// Package client fetches records from the Airtable REST API and assembles
// them into datasets for the sanitizer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/shelf/internal/airtable"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the public Airtable API endpoint.
const DefaultBaseURL = "https://api.airtable.com"

// MaxPageSize is the largest page the list endpoint accepts.
const MaxPageSize = 100

// maxCreateBatch is the largest number of records one create call accepts.
const maxCreateBatch = 10

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("airtable: record not found")

// APIError is a non-2xx answer from Airtable.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("airtable: %d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("airtable: %d %s", e.Status, e.Type)
}

// Config holds client settings.
type Config struct {
	BaseURL    string // Defaults to DefaultBaseURL
	BaseID     string // Airtable base, "app..."
	APIKey     string // Personal access token
	Timeout    time.Duration
	PageSize   int
	HTTPClient *http.Client
}

// Client talks to one Airtable base.
type Client struct {
	baseURL  string
	baseID   string
	apiKey   string
	pageSize int
	http     *http.Client
}

// New creates a Client. BaseID and APIKey are required.
func New(cfg Config) (*Client, error) {
	if cfg.BaseID == "" {
		return nil, errors.New("airtable: base id is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("airtable: api key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  baseURL,
		baseID:   cfg.BaseID,
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		http:     hc,
	}, nil
}

// ListOptions narrows a ListRecords call.
type ListOptions struct {
	FilterByFormula string
	View            string
	MaxRecords      int
}

type listResponse struct {
	Records []airtable.RawRecord `json:"records"`
	Offset  string               `json:"offset"`
}

// ListRecords returns every record of table, following pagination.
func (c *Client) ListRecords(ctx context.Context, table string, opts ListOptions) ([]airtable.RawRecord, error) {
	var (
		records []airtable.RawRecord
		offset  string
	)

	for {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(c.pageSize))
		if opts.FilterByFormula != "" {
			q.Set("filterByFormula", opts.FilterByFormula)
		}
		if opts.View != "" {
			q.Set("view", opts.View)
		}
		if opts.MaxRecords > 0 {
			q.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+q.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		records = append(records, page.Records...)

		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}

	slog.Debug("airtable table fetched", "table", table, "records", len(records))
	return records, nil
}

// FindOne returns the first record of table matching formula.
func (c *Client) FindOne(ctx context.Context, table, formula string) (airtable.RawRecord, error) {
	records, err := c.ListRecords(ctx, table, ListOptions{FilterByFormula: formula, MaxRecords: 1})
	if err != nil {
		return airtable.RawRecord{}, err
	}
	if len(records) == 0 {
		return airtable.RawRecord{}, ErrNotFound
	}
	return records[0], nil
}

// FetchDataset fetches tables concurrently into one Dataset.
func (c *Client) FetchDataset(ctx context.Context, tables ...string) (airtable.Dataset, error) {
	var mu sync.Mutex
	dataset := make(airtable.Dataset, len(tables))

	g, ctx := errgroup.WithContext(ctx)
	for _, table := range tables {
		g.Go(func() error {
			records, err := c.ListRecords(ctx, table, ListOptions{})
			if err != nil {
				return err
			}
			mu.Lock()
			dataset[table] = records
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dataset, nil
}

type createRequest struct {
	Records  []createRecord `json:"records"`
	Typecast bool           `json:"typecast,omitempty"`
}

type createRecord struct {
	Fields map[string]any `json:"fields"`
}

// CreateRecords inserts records into table and returns them as stored.
// Larger inputs are split into the batches Airtable accepts.
func (c *Client) CreateRecords(ctx context.Context, table string, fields []map[string]any) ([]airtable.RawRecord, error) {
	created := make([]airtable.RawRecord, 0, len(fields))

	for start := 0; start < len(fields); start += maxCreateBatch {
		end := min(start+maxCreateBatch, len(fields))

		req := createRequest{Typecast: true}
		for _, f := range fields[start:end] {
			req.Records = append(req.Records, createRecord{Fields: f})
		}

		var resp listResponse
		if err := c.do(ctx, http.MethodPost, c.tableURL(table), req, &resp); err != nil {
			return nil, fmt.Errorf("create %s: %w", table, err)
		}
		created = append(created, resp.Records...)
	}

	slog.Info("airtable records created", "table", table, "count", len(created))
	return created, nil
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/v0/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseAPIError reads both error shapes Airtable uses:
// {"error": "NOT_FOUND"} and {"error": {"type": "...", "message": "..."}}.
func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Type: http.StatusText(resp.StatusCode)}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(data, &envelope) != nil || len(envelope.Error) == 0 {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	var code string
	if json.Unmarshal(envelope.Error, &code) == nil {
		apiErr.Type = code
		return apiErr
	}

	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &detail) == nil {
		if detail.Type != "" {
			apiErr.Type = detail.Type
		}
		apiErr.Message = detail.Message
	}
	return apiErr
}

// FieldEquals builds a filterByFormula expression matching field == value.
func FieldEquals(field, value string) string {
	return "{" + field + "}=" + strconv.Quote(value)
}
