// Package signals gathers market signals for a domain from the web-search
// provider. Three fixed topics are queried per analysis; the query templates
// are part of the contract because they determine what evidence the scoring
// engine can reason over.
package signals

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://api.tavily.com"
	searchPath     = "/search"

	DefaultMaxResultsPerTopic = 3
	DefaultTimeout            = 30 * time.Second
)

type Topic string

const (
	TopicFunding   Topic = "funding"
	TopicHiring    Topic = "hiring"
	TopicTechStack Topic = "tech_stack"
)

// Topics lists the fixed, exhaustive topic set in bundle order.
func Topics() []Topic { return []Topic{TopicFunding, TopicHiring, TopicTechStack} }

// QueryForTopic returns the fixed query template parameterized by domain.
func QueryForTopic(topic Topic, domain string) string {
	switch topic {
	case TopicFunding:
		return fmt.Sprintf("When was %s last funding round?", domain)
	case TopicHiring:
		return fmt.Sprintf("Is %s hiring for sales roles?", domain)
	case TopicTechStack:
		return fmt.Sprintf("What tech stack does %s use?", domain)
	default:
		return ""
	}
}

// Result is one ranked search hit. Raw keeps the provider's full item for the
// envelope appendix; the typed fields are what prompts embed.
type Result struct {
	Title   string         `json:"title"`
	URL     string         `json:"url"`
	Content string         `json:"content"`
	Raw     map[string]any `json:"raw,omitempty"`
}

// Bundle maps each topic to its ordered results. A topic whose query failed
// has a nil entry; provider ranking order is preserved.
type Bundle map[Topic][]Result

// Empty reports whether no topic produced any result.
func (b Bundle) Empty() bool {
	for _, results := range b {
		if len(results) > 0 {
			return false
		}
	}
	return true
}

type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("search API key not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResultsPerTopic
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{cfg: cfg}, nil
}

// Gather issues the three topic queries concurrently. A single topic's
// failure leaves its entry empty and is logged, not propagated; Gather fails
// only when every topic query failed.
func (c *Client) Gather(ctx context.Context, domain string) (Bundle, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, errors.New("domain is required")
	}

	bundle := Bundle{}
	errsByTopic := map[Topic]error{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, topic := range Topics() {
		wg.Add(1)
		go func(topic Topic) {
			defer wg.Done()
			results, err := c.search(ctx, QueryForTopic(topic, domain))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("budget-window signal query failed topic=%s err=%v", topic, err)
				bundle[topic] = nil
				errsByTopic[topic] = err
				return
			}
			bundle[topic] = results
		}(topic)
	}
	wg.Wait()

	if len(errsByTopic) == len(Topics()) {
		return nil, fmt.Errorf("all signal queries failed: %v", errsByTopic[TopicFunding])
	}
	return bundle, nil
}

type searchResponse struct {
	Results []map[string]any `json:"results"`
}

func (c *Client) search(ctx context.Context, query string) ([]Result, error) {
	payload, _ := json.Marshal(map[string]any{
		"query":       query,
		"max_results": c.cfg.MaxResults,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+searchPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("status code: %d", res.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(parsed.Results))
	for _, raw := range parsed.Results {
		if len(out) >= c.cfg.MaxResults {
			break
		}
		out = append(out, Result{
			Title:   strings.TrimSpace(str(raw["title"])),
			URL:     strings.TrimSpace(str(raw["url"])),
			Content: strings.TrimSpace(str(raw["content"])),
			Raw:     raw,
		})
	}
	return out, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
