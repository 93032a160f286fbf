// Package dataset fetches the raw corpus from the Hugging Face dataset
// viewer API.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/documents"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://datasets-server.huggingface.co"
	defaultPageSize  = 100
	defaultRateLimit = 5.0
	defaultTimeout   = 60 * time.Second
	maxErrorBody     = 512
)

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("invalid dataset config")

// Config identifies the dataset split to fetch.
type Config struct {
	BaseURL           string
	Dataset           string
	ConfigName        string
	Split             string
	PageSize          int
	RequestsPerSecond float64
	Token             string
	Timeout           time.Duration
}

// Loader pages through a dataset split. Requests are paced by a rate
// limiter and never retried; any failure aborts the load.
type Loader struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// rowsResponse is the /rows payload.
type rowsResponse struct {
	Rows []struct {
		RowIdx int            `json:"row_idx"`
		Row    map[string]any `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

// New creates a Loader. logger may be nil.
func New(cfg Config, logger *zap.Logger) (*Loader, error) {
	if cfg.Dataset == "" || cfg.Split == "" {
		return nil, fmt.Errorf("%w: dataset and split are required", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ConfigName == "" {
		cfg.ConfigName = "default"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PageSize > 100 {
		return nil, fmt.Errorf("%w: page size %d exceeds 100", ErrInvalidConfig, cfg.PageSize)
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRateLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:     logger,
	}, nil
}

// Load fetches every row of the split in order.
func (l *Loader) Load(ctx context.Context) ([]documents.RawRecord, error) {
	var (
		records []documents.RawRecord
		total   = -1
	)

	for offset := 0; total < 0 || offset < total; {
		page, err := l.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		total = page.NumRowsTotal
		if len(page.Rows) == 0 {
			break
		}

		for _, r := range page.Rows {
			records = append(records, toRecord(r.Row))
		}
		offset += len(page.Rows)

		if (offset/l.cfg.PageSize)%20 == 0 || offset >= total {
			l.logger.Info("dataset download progress",
				zap.String("dataset", l.cfg.Dataset),
				zap.Int("rows", offset),
				zap.Int("total", total),
			)
		}
	}

	return records, nil
}

// fetchPage requests one page of rows starting at offset.
func (l *Loader) fetchPage(ctx context.Context, offset int) (*rowsResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	q := url.Values{}
	q.Set("dataset", l.cfg.Dataset)
	q.Set("config", l.cfg.ConfigName)
	q.Set("split", l.cfg.Split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(l.cfg.PageSize))
	endpoint := strings.TrimRight(l.cfg.BaseURL, "/") + "/rows?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if l.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.cfg.Token)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rows at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("fetch rows at offset %d: status %d: %s", offset, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page rowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode rows at offset %d: %w", offset, err)
	}
	return &page, nil
}

// toRecord maps a dataset row onto a RawRecord. A missing or non-string
// file_name column becomes documents.UnknownFile.
func toRecord(row map[string]any) documents.RawRecord {
	text, _ := row["text"].(string)
	file, ok := row["file_name"].(string)
	if !ok {
		file = documents.UnknownFile
	}
	return documents.RawRecord{Text: text, File: file}
}
