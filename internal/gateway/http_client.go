package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type HTTPClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client
}

// HTTPClient talks to a ledger node's JSON gateway. Reads and time queries
// retry on transport failure; Submit never retries because the node may
// have accepted the payload before the failure.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	retries int
}

func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ledger node base url required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  client,
		timeout: timeout,
		retries: retries,
	}, nil
}

func (c *HTTPClient) Read(ctx context.Context, call Call, out any) error {
	var resp struct {
		Value json.RawMessage `json:"value"`
	}
	if err := c.postRetry(ctx, "/ledger/call", call, &resp); err != nil {
		return fmt.Errorf("ledger read %s.%s: %w", call.Contract, call.Method, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Value, out); err != nil {
		return fmt.Errorf("ledger read %s.%s: decode value: %w", call.Contract, call.Method, err)
	}
	return nil
}

func (c *HTTPClient) EstimateBudget(ctx context.Context, call Call) (Budget, error) {
	var resp struct {
		Limit uint64 `json:"limit"`
		Price string `json:"price"`
	}
	if err := c.postRetry(ctx, "/ledger/estimate", call, &resp); err != nil {
		return Budget{}, fmt.Errorf("estimate %s.%s: %w", call.Contract, call.Method, err)
	}
	budget := Budget{Limit: resp.Limit}
	var ok bool
	if budget.Price, ok = ParseBig(resp.Price); !ok {
		return Budget{}, fmt.Errorf("estimate %s.%s: bad price %q", call.Contract, call.Method, resp.Price)
	}
	return budget, nil
}

// Submit is single-attempt: a transport error here leaves the action's true
// outcome unknown and the caller must re-query before retrying.
func (c *HTTPClient) Submit(ctx context.Context, action SignedAction) (SettlementRecord, error) {
	var rec SettlementRecord
	if err := c.post(ctx, "/ledger/submit", action, &rec); err != nil {
		return SettlementRecord{}, fmt.Errorf("submit action %s: %w", action.ID, err)
	}
	return rec, nil
}

func (c *HTTPClient) CurrentTime(ctx context.Context) (uint64, error) {
	var resp struct {
		Time uint64 `json:"time"`
	}
	if err := c.postRetry(ctx, "/ledger/time", struct{}{}, &resp); err != nil {
		return 0, fmt.Errorf("ledger time: %w", err)
	}
	return resp.Time, nil
}

func (c *HTTPClient) postRetry(ctx context.Context, path string, body, out any) error {
	attempts := c.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lastErr = c.post(ctx, path, body, out); lastErr == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}
	return lastErr
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	// Submit rides the caller's deadline alone; everything else gets the
	// per-attempt timeout so retries stay bounded.
	reqCtx := ctx
	var cancel context.CancelFunc = func() {}
	if path != "/ledger/submit" {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	cancel()
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("ledger node unavailable: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("ledger node rejected request: %s", apiErr.Error)
		}
		return fmt.Errorf("ledger node rejected request: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
