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

const defaultMaxCharCount = 20000

// WebsiteInfoArgs represents the arguments for the fetch_webpage tool
type WebsiteInfoArgs struct {
	URL          string `json:"url"`
	MaxCharCount int    `json:"maxCharCount,omitempty"`
}

// WebsiteTool fetches a page and returns its readable text
type WebsiteTool struct {
	BaseTool
	client *http.Client
}

func NewWebsiteTool(timeout time.Duration) *WebsiteTool {
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"url": {
				Type:        jsonschema.String,
				Description: "URL of the web page to read",
			},
			"maxCharCount": {
				Type:        jsonschema.Integer,
				Description: "Maximum number of characters to return (default: 20000)",
			},
		},
		Required: []string{"url"},
	}

	return &WebsiteTool{
		BaseTool: BaseTool{
			ToolName:        "fetch_webpage",
			ToolDescription: "Fetch a web page and return its title and text content. Use this whenever a URL is mentioned instead of assuming its content.",
			ToolParameters:  params,
			ToolCacheable:   true,
		},
		client: CreateHTTPClient(timeout),
	}
}

func (t *WebsiteTool) Execute(ctx context.Context, args string) (string, error) {
	var params WebsiteInfoArgs
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %v", err)
	}

	rawURL := strings.TrimSpace(params.URL)
	if rawURL == "" {
		return "", fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", params.URL)
	}

	maxCharCount := params.MaxCharCount
	if maxCharCount <= 0 {
		maxCharCount = defaultMaxCharCount
	}

	logger.Infof("Fetching content from URL: %s", rawURL)
	body, err := doGet(ctx, t.client, rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch website: %w", err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := collapseSpaces(doc.Find("title").First().Text())
	if title == "" {
		title = "No title found"
	}
	content := extractCleanText(doc)

	metadata := fmt.Sprintf("Website: %s\nTitle: %s\n\n", u.Hostname(), title)
	return TruncateString(metadata+content, maxCharCount), nil
}

// extractCleanText returns the text of the main content area, falling back to the body.
func extractCleanText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, iframe, header, footer, nav").Remove()

	for _, selector := range []string{"main", "article", "#content", ".content"} {
		if text := collapseSpaces(doc.Find(selector).First().Text()); len(text) > 200 {
			return text
		}
	}
	return collapseSpaces(doc.Find("body").Text())
}
