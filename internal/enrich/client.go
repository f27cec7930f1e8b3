// Package enrich fetches firmographic company records from the enrichment
// provider. A failed fetch is recoverable: the analysis continues with no
// company record.
package enrich

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
)

const (
	DefaultBaseURL = "https://api.fullenrich.com"
	enrichPath     = "/v1/company/enrich"

	// Single attempt, bounded wall clock. The provider is slow on cold
	// domains, so the budget is generous.
	DefaultTimeout = 30 * time.Second
)

// UnavailableError marks a recoverable provider failure (non-2xx status or
// transport error). The orchestrator continues with an absent CompanyRecord.
type UnavailableError struct {
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("enrichment provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("enrichment provider unreachable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// CompanyRecord is the provider's JSON body taken verbatim. Fields vary by
// provider and are read defensively through the accessors.
type CompanyRecord map[string]any

func (r CompanyRecord) Name() (string, bool)    { return r.stringField("name", "company_name") }
func (r CompanyRecord) Revenue() (string, bool) { return r.stringField("revenue", "annual_revenue") }

// Employees accepts both numeric and string-typed employee counts.
func (r CompanyRecord) Employees() (int, bool) {
	for _, key := range []string{"employees", "employee_count", "headcount"} {
		switch v := r[key].(type) {
		case float64:
			return int(v), true
		case string:
			n := 0
			if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func (r CompanyRecord) stringField(keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := r[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("enrichment API key not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{cfg: cfg}, nil
}

// Fetch posts the domain to the enrichment provider and returns the response
// body as a CompanyRecord. Non-2xx statuses and transport failures come back
// as *UnavailableError; there are no retries.
func (c *Client) Fetch(ctx context.Context, domain string) (CompanyRecord, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, errors.New("domain is required")
	}

	payload, _ := json.Marshal(map[string]string{"domain": domain})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+enrichPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &UnavailableError{StatusCode: res.StatusCode}
	}

	var record CompanyRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, &UnavailableError{StatusCode: res.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return record, nil
}
