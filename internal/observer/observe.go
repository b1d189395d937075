// Package observer follows a running session through its HTTP API.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/engine"
)

// ErrNotReady means the API never answered before the deadline.
var ErrNotReady = errors.New("session API not ready")

// Snapshot holds everything collected in one observation.
type Snapshot struct {
	Status   SessionStatus     `json:"status"`
	Outcomes []engine.Outcome  `json:"outcomes"`
	Deals    int               `json:"deals"`
	Catalog  []catalog.Summary `json:"catalog"`
}

// SessionStatus mirrors GET /api/v1/status.
type SessionStatus struct {
	Running  bool   `json:"running"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
	Seed     int64  `json:"seed"`
	Duration string `json:"duration"`
	Deals    int    `json:"deals"`
	Agents   []struct {
		Ref   string `json:"ref"`
		State string `json:"state"`
	} `json:"agents"`
}

// Observer fetches session state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status fetches the session status alone.
func (o *Observer) Status(ctx context.Context) (SessionStatus, error) {
	var st SessionStatus
	if err := o.fetchJSON(ctx, "/api/v1/status", &st); err != nil {
		return st, fmt.Errorf("fetch status: %w", err)
	}
	return st, nil
}

// Observe fetches status, outcomes and catalog.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	var err error
	if snap.Status, err = o.Status(ctx); err != nil {
		return nil, err
	}

	var outcomes struct {
		Outcomes []engine.Outcome `json:"outcomes"`
		Deals    int              `json:"deals"`
	}
	if err := o.fetchJSON(ctx, "/api/v1/outcomes", &outcomes); err != nil {
		return nil, fmt.Errorf("fetch outcomes: %w", err)
	}
	snap.Outcomes, snap.Deals = outcomes.Outcomes, outcomes.Deals

	var products struct {
		Products []catalog.Summary `json:"products"`
	}
	if err := o.fetchJSON(ctx, "/api/v1/catalog", &products); err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	snap.Catalog = products.Products

	return snap, nil
}

// WaitReady polls the status endpoint with exponential backoff until it
// responds or timeout passes.
func (o *Observer) WaitReady(ctx context.Context, backoff, maxBackoff, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if _, err := o.Status(ctx); err == nil {
			slog.Info("session API is ready")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w within %s", ErrNotReady, timeout)
		}
		slog.Info("session API not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// WaitDone polls until the session reports done and returns the final
// snapshot.
func (o *Observer) WaitDone(ctx context.Context, interval time.Duration) (*Snapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := o.Status(ctx)
		if err != nil {
			return nil, err
		}
		if st.Done {
			return o.Observe(ctx)
		}
		slog.Debug("session running", "deals", st.Deals)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
