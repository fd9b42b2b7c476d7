package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// SearchFunc is the web-search capability. A nil SearchFunc means search
// is not configured and web routing is disabled.
type SearchFunc func(ctx context.Context, query string) (string, error)

// BraveSearchResult contains the sections of the search response we keep.
type BraveSearchResult struct {
	Query BraveQueryInfo  `json:"query"`
	Web   BraveWebResults `json:"web"`
}

type BraveQueryInfo struct {
	Original string `json:"original"`
}

type BraveWebResults struct {
	Results []BraveWebResult `json:"results"`
}

type BraveWebResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Brave_Search searches the web using the Brave Search API. Returns a
// readable text block of titles, URLs, and snippets.
func Brave_Search(ctx context.Context, query string) (string, error) {
	apiKey := os.Getenv("BRAVE_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("BRAVE_API_KEY environment variable not set")
	}

	apiURL := "https://api.search.brave.com/res/v1/web/search"

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	q := req.URL.Query()
	q.Add("q", query)
	q.Add("count", "3")
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request to Brave Search API: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Brave Search API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	var result BraveSearchResult
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return "", fmt.Errorf("error unmarshalling Brave Search API response: %w", err)
	}

	return formatSearchResults(result), nil
}

// stripStrongTags removes specific known HTML tags from strings
func stripStrongTags(s string) string {
	s = strings.ReplaceAll(s, "<strong>", "")
	s = strings.ReplaceAll(s, "</strong>", "")
	return s
}

// formatSearchResults converts the search result struct into a readable
// text format, stripping known HTML tags from titles and descriptions.
func formatSearchResults(searchResult BraveSearchResult) string {
	var builder strings.Builder

	if len(searchResult.Web.Results) == 0 {
		builder.WriteString("No web results found.\n")
		return builder.String()
	}

	for i, webResult := range searchResult.Web.Results {
		builder.WriteString(fmt.Sprintf("%d. Title: %s\n", i+1, stripStrongTags(webResult.Title)))
		builder.WriteString(fmt.Sprintf("   URL: %s\n", webResult.URL))
		builder.WriteString(fmt.Sprintf("   Description: %s\n", stripStrongTags(webResult.Description)))

		parsedURL, err := url.Parse(webResult.URL)
		source := "Unknown"
		if err == nil {
			source = strings.TrimPrefix(parsedURL.Hostname(), "www.")
		}
		builder.WriteString(fmt.Sprintf("   Source: %s\n\n", source))
	}

	return builder.String()
}
