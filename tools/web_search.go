package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/lexcodex/wayforward/framework"
)

// ErrRateLimited is returned when a search cannot be issued within the
// limiter's wait budget or the provider throttles the request.
var ErrRateLimited = errors.New("search rate limited")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// SearchResult is one ranked snippet.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchProvider runs a query against an external search engine.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// DuckDuckGoProvider scrapes the DuckDuckGo HTML endpoint. No API key needed.
type DuckDuckGoProvider struct {
	Endpoint string
	Client   *http.Client
}

// NewDuckDuckGoProvider builds a provider against the public endpoint.
func NewDuckDuckGoProvider(timeout time.Duration) *DuckDuckGoProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DuckDuckGoProvider{
		Endpoint: "https://html.duckduckgo.com/html/",
		Client:   &http.Client{Timeout: timeout},
	}
}

// Search implements SearchProvider.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = "https://html.duckduckgo.com/html/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// DuckDuckGo answers throttled clients with 202 and an empty page.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusAccepted {
		return nil, fmt.Errorf("%w: HTTP %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parseDuckDuckGoResults(string(body), maxResults)
}

func parseDuckDuckGoResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	results := make([]SearchResult, 0, maxResults)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attr(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if r := extractResult(n); r.URL != "" && r.Title != "" {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) SearchResult {
	var result SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				result.URL = attr(n, "href")
				result.Title = textContent(n)
			case strings.Contains(class, "result__snippet"):
				result.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	result.URL = unwrapRedirect(result.URL)
	return result
}

// unwrapRedirect turns //duckduckgo.com/l/?uddg=<target>&rut=... into target.
func unwrapRedirect(raw string) string {
	if !strings.Contains(raw, "duckduckgo.com/l/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// WebSearchTool exposes a SearchProvider as the web_search capability.
type WebSearchTool struct {
	Provider   SearchProvider
	Limiter    *rate.Limiter
	MaxWait    time.Duration
	MaxResults int
	Logger     *zap.Logger
}

// NewWebSearchTool wires provider behind a limiter allowing one query per
// interval with the given burst.
func NewWebSearchTool(provider SearchProvider, interval time.Duration, burst int) *WebSearchTool {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst <= 0 {
		burst = 1
	}
	return &WebSearchTool{
		Provider:   provider,
		Limiter:    rate.NewLimiter(limit, burst),
		MaxWait:    10 * time.Second,
		MaxResults: 8,
		Logger:     zap.NewNop(),
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Searches the web and returns an ordered list of result snippets (title, url, snippet)."
}
func (t *WebSearchTool) Category() string { return "research" }
func (t *WebSearchTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "query", Type: "string", Description: "The search query", Required: true},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, state *framework.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return nil, errors.New("query is required")
	}
	if t.Provider == nil {
		return nil, errors.New("no search provider configured")
	}
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	max := t.MaxResults
	if max <= 0 {
		max = 8
	}
	results, err := t.Provider.Search(ctx, query, max)
	if err != nil {
		t.logger().Warn("web search failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("search failed: %w", err)
	}
	t.logger().Debug("web search completed", zap.String("query", query), zap.Int("results", len(results)))
	if results == nil {
		results = []SearchResult{}
	}
	return &framework.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"query":   query,
			"results": results,
			"count":   len(results),
		},
	}, nil
}

func (t *WebSearchTool) wait(ctx context.Context) error {
	if t.Limiter == nil {
		return nil
	}
	waitCtx := ctx
	if t.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, t.MaxWait)
		defer cancel()
	}
	if err := t.Limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return nil
}

func (t *WebSearchTool) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func stringArg(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
