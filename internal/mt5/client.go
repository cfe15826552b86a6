// Package mt5 provides a client for the MT5 bridge REST API.
package mt5

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rewired-gh/eaanalyzer/internal/logger"
	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// ErrStatus is wrapped by every non-2xx response error.
var ErrStatus = errors.New("unexpected status")

// StatusError carries the status code and body of a failed request.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v %d: %s", ErrStatus, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// ClientConfig tunes retries and connection pooling.
type ClientConfig struct {
	MaxRetries          int
	RetryDelayBase      time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	// Location is attached to timestamps that carry no zone.
	Location *time.Location
}

// Client provides access to the MT5 bridge API
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        ClientConfig
}

// dealPayload is a deal as serialized by the bridge.
type dealPayload struct {
	Ticket     int64   `json:"ticket"`
	Time       string  `json:"time"`
	Type       int     `json:"type"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	NetProfit  float64 `json:"net_profit"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`
	Symbol     string  `json:"symbol"`
	EAID       string  `json:"ea_id"`
}

type dealsRequest struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

// NewClient creates a new bridge client. baseURL includes the API prefix,
// e.g. http://127.0.0.1:8000/api/v1.
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = cfg.IdleConnTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		cfg: cfg,
	}
}

// Status reports whether the bridge is attached to a running terminal.
func (c *Client) Status(ctx context.Context) (*models.TerminalStatus, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status: %w", err)
	}
	defer resp.Body.Close()

	var status models.TerminalStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &status, nil
}

// Connect asks the bridge to attach to the terminal.
func (c *Client) Connect(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/connect", nil)
	if err != nil {
		return fmt.Errorf("failed to connect terminal: %w", err)
	}
	resp.Body.Close()
	return nil
}

// FetchDeals retrieves closed deals between from and to.
// Deals that fail validation are skipped.
func (c *Client) FetchDeals(ctx context.Context, from, to time.Time) ([]models.Deal, error) {
	body, err := json.Marshal(dealsRequest{
		DateFrom: from.Format(time.RFC3339),
		DateTo:   to.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/deals", body)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deals: %w", err)
	}
	defer resp.Body.Close()

	// Response is array directly, not wrapped
	var payload []dealPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode deals: %w", err)
	}

	deals := make([]models.Deal, 0, len(payload))
	for _, p := range payload {
		ts, err := parseTime(p.Time, c.cfg.Location)
		if err != nil {
			logger.Warn("Skipping deal %d: %v", p.Ticket, err)
			continue
		}
		d := models.Deal{
			Ticket:     p.Ticket,
			Time:       ts,
			Type:       models.TradeType(p.Type),
			Volume:     p.Volume,
			Price:      p.Price,
			NetProfit:  p.NetProfit,
			Commission: p.Commission,
			Swap:       p.Swap,
			Symbol:     p.Symbol,
			EAID:       p.EAID,
		}
		if err := d.Validate(); err != nil {
			logger.Warn("Skipping deal %d: %v", p.Ticket, err)
			continue
		}
		deals = append(deals, d)
	}

	return deals, nil
}

// naiveLayouts are the zone-less formats the bridge emits for terminal time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTime accepts RFC 3339 or a naive timestamp interpreted in loc.
// Zoned timestamps are converted to loc so weekday and hour are terminal-local.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// doRequest performs HTTP request with retry logic.
// Network errors and 5xx responses are retried with linear backoff;
// other non-2xx responses fail immediately.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelayBase * time.Duration(i)):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Debug("Bridge request %s %s failed (attempt %d/%d): %v", method, path, i+1, c.cfg.MaxRetries, err)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = readStatusError(resp)
			logger.Debug("Bridge request %s %s returned %d (attempt %d/%d)", method, path, resp.StatusCode, i+1, c.cfg.MaxRetries)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, readStatusError(resp)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func readStatusError(resp *http.Response) error {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
