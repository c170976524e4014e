// Package apiclient talks to the master-data REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/config"
	"github.com/agencydesk/mdconsole/pkg/metrics"
	"github.com/agencydesk/mdconsole/pkg/model"
)

const maxPages = 10000

// TokenSource supplies the bearer token for a request and is told when the API
// rejected it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenSource
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
	pageSize    int
	logger      *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewClient(cfg config.APIConfig, tokens TokenSource, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        &http.Client{Timeout: timeout},
		tokens:      tokens,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
		pageSize:    pageSize,
		logger:      logger,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
	}
}

type pageMeta struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Pages       int  `json:"pages"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
}

type pageEnvelope struct {
	Data []model.Record `json:"data"`
	Meta *pageMeta      `json:"meta"`
}

// List fetches a whole collection. Paginated endpoints are followed to the last page;
// endpoints answering with a plain array are read in one request.
func (c *Client) List(ctx context.Context, endpoint string) ([]model.Record, error) {
	var all []model.Record
	for page := 1; page <= maxPages; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("limit", strconv.Itoa(c.pageSize))

		body, err := c.do(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}

		trimmed := bytes.TrimSpace(body)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var records []model.Record
			if err := json.Unmarshal(trimmed, &records); err != nil {
				return nil, fmt.Errorf("decode %s: %w", endpoint, err)
			}
			return records, nil
		}

		var envelope pageEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode %s: %w", endpoint, err)
		}
		all = append(all, envelope.Data...)
		if envelope.Meta == nil || !envelope.Meta.HasNextPage || len(envelope.Data) == 0 {
			return all, nil
		}
	}
	return nil, fmt.Errorf("list %s: more than %d pages", endpoint, maxPages)
}

func (c *Client) Get(ctx context.Context, endpoint string, id int64) (model.Record, error) {
	body, err := c.do(ctx, http.MethodGet, recordPath(endpoint, id), nil)
	if err != nil {
		return model.Record{}, err
	}
	return decodeRecord(endpoint, body)
}

func (c *Client) Create(ctx context.Context, endpoint string, fields map[string]interface{}) (model.Record, error) {
	body, err := c.do(ctx, http.MethodPost, endpoint, fields)
	if err != nil {
		return model.Record{}, err
	}
	return decodeRecord(endpoint, body)
}

func (c *Client) Update(ctx context.Context, endpoint string, id int64, fields map[string]interface{}) (model.Record, error) {
	body, err := c.do(ctx, http.MethodPut, recordPath(endpoint, id), fields)
	if err != nil {
		return model.Record{}, err
	}
	return decodeRecord(endpoint, body)
}

func (c *Client) Patch(ctx context.Context, endpoint string, id int64, fields map[string]interface{}) (model.Record, error) {
	body, err := c.do(ctx, http.MethodPatch, recordPath(endpoint, id), fields)
	if err != nil {
		return model.Record{}, err
	}
	return decodeRecord(endpoint, body)
}

func (c *Client) Delete(ctx context.Context, endpoint string, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, recordPath(endpoint, id), nil)
	return err
}

// do sends one request. GETs are retried with exponential backoff on network errors
// and 5xx answers; writes are sent exactly once.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	fullURL := c.baseURL + path
	retryable := method == http.MethodGet

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			metrics.UpstreamRetriesTotal.WithLabelValues(method).Inc()
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		status, body, err := c.send(ctx, method, fullURL, token, encoded)
		metrics.UpstreamRequestsTotal.WithLabelValues(method, metrics.ResultClass(status)).Inc()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			netErr := &NetworkError{Method: method, URL: fullURL, Err: err}
			if retryable && attempt < c.maxRetries {
				c.logger.Debug("retrying after network error", zap.String("url", fullURL), zap.Int("attempt", attempt+1), zap.Error(err))
				continue
			}
			return nil, netErr
		}

		switch {
		case status == http.StatusUnauthorized:
			c.tokens.Invalidate(ctx)
			return nil, &AuthenticationError{Message: errorMessage(body)}
		case status >= 500:
			if retryable && attempt < c.maxRetries {
				c.logger.Debug("retrying after server error", zap.String("url", fullURL), zap.Int("status", status), zap.Int("attempt", attempt+1))
				continue
			}
			return nil, &APIError{Method: method, URL: fullURL, StatusCode: status, Message: errorMessage(body)}
		case status >= 400:
			return nil, &APIError{Method: method, URL: fullURL, StatusCode: status, Message: errorMessage(body)}
		}
		return body, nil
	}
}

func (c *Client) send(ctx context.Context, method, fullURL, token string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	c.randMu.Lock()
	wait := backoff(attempt, c.backoffBase, c.backoffMax) + jitter(c.rand, c.backoffBase/2)
	c.randMu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func recordPath(endpoint string, id int64) string {
	return endpoint + "/" + strconv.FormatInt(id, 10)
}

// decodeRecord accepts both a bare record and a {"data": record} envelope.
func decodeRecord(endpoint string, body []byte) (model.Record, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		body = envelope.Data
	}
	var record model.Record
	if err := json.Unmarshal(body, &record); err != nil {
		return model.Record{}, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return record, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}
