package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sashabaranov/go-openai/jsonschema"

	"agentloop/internal/logger"
)

type SearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchTool queries the DuckDuckGo HTML endpoint.
type SearchTool struct {
	BaseTool
	baseURL    string
	maxResults int
	client     *http.Client
}

func NewSearchTool(baseURL string, maxResults int, timeout time.Duration) *SearchTool {
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com/html/"
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"query": {
				Type:        jsonschema.String,
				Description: "The search query",
			},
			"maxResults": {
				Type:        jsonschema.Integer,
				Description: fmt.Sprintf("Number of results to return (default: %d)", maxResults),
			},
		},
		Required: []string{"query"},
	}

	return &SearchTool{
		BaseTool: BaseTool{
			ToolName:        "web_search",
			ToolDescription: "Search the web for current events or facts you are unsure about. Returns titles, links and snippets.",
			ToolParameters:  params,
			ToolCacheable:   true,
		},
		baseURL:    baseURL,
		maxResults: maxResults,
		client:     CreateHTTPClient(timeout),
	}
}

func (t *SearchTool) Execute(ctx context.Context, args string) (string, error) {
	var params SearchArgs
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %v", err)
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	limit := params.MaxResults
	if limit <= 0 || limit > 20 {
		limit = t.maxResults
	}

	results, err := t.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Search returns up to limit results for query.
func (t *SearchTool) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	endpoint, err := url.Parse(t.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	endpoint.RawQuery = q.Encode()

	logger.Infof("Searching the web for: %s", query)
	body, err := doGet(ctx, t.client, endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	var results []SearchResult
	doc.Find(".result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		title := collapseSpaces(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     resolveResultURL(href),
			Snippet: collapseSpaces(s.Find(".result__snippet").First().Text()),
		})
		return len(results) < limit
	})
	return results, nil
}

// resolveResultURL unwraps DuckDuckGo redirect links (/l/?uddg=<target>).
func resolveResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
