package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/lexcodex/wayforward/framework"
)

// DefaultPageCeiling bounds how much page text reaches an agent transcript.
const DefaultPageCeiling = 10000

const truncationMarker = "...(truncated)"

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// FetchPageTool retrieves a single page and flattens it to plain text.
type FetchPageTool struct {
	Client   *http.Client
	MaxChars int
	Logger   *zap.Logger
}

// NewFetchPageTool builds the tool with a request timeout and text ceiling.
func NewFetchPageTool(timeout time.Duration, maxChars int) *FetchPageTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxChars <= 0 {
		maxChars = DefaultPageCeiling
	}
	return &FetchPageTool{
		Client:   &http.Client{Timeout: timeout},
		MaxChars: maxChars,
		Logger:   zap.NewNop(),
	}
}

func (t *FetchPageTool) Name() string { return "fetch_page" }
func (t *FetchPageTool) Description() string {
	return "Fetches a web page by URL and returns its readable text content (truncated if long)."
}
func (t *FetchPageTool) Category() string { return "research" }
func (t *FetchPageTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "url", Type: "string", Description: "Absolute http(s) URL to fetch", Required: true},
	}
}

func (t *FetchPageTool) Execute(ctx context.Context, state *framework.Context, args map[string]interface{}) (*framework.ToolResult, error) {
	raw := strings.TrimSpace(stringArg(args, "url"))
	if raw == "" {
		return nil, errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var text string
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "text/markdown") {
		text = strings.TrimSpace(string(body))
	} else {
		text, err = flattenHTML(string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to flatten page: %w", err)
		}
	}
	max := t.MaxChars
	if max <= 0 {
		max = DefaultPageCeiling
	}
	text, truncated := truncateRunes(text, max)
	if t.Logger != nil {
		t.Logger.Debug("page fetched", zap.String("url", u.String()), zap.Int("chars", utf8.RuneCountInString(text)), zap.Bool("truncated", truncated))
	}
	return &framework.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"url":       u.String(),
			"content":   text,
			"truncated": truncated,
		},
	}, nil
}

// flattenHTML keeps readable text, dropping scripts, styles and page chrome.
func flattenHTML(content string) (string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	writeText(doc, &sb, 0)
	return cleanText(sb.String()), nil
}

func writeText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 64 {
		return
	}
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header", "form":
			return
		case "title", "h1", "h2", "h3", "h4", "h5", "h6", "p", "div", "section", "article", "tr":
			sb.WriteString("\n\n")
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, sb, depth+1)
	}
}

func cleanText(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// truncateRunes cuts s to max runes and appends the truncation marker.
func truncateRunes(s string, max int) (string, bool) {
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]) + truncationMarker, true
}
