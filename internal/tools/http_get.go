package tools

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultHTTPGetLimit = 1000
	maxHTTPBodyBytes    = 1 << 20
	truncatedSuffix     = "...(truncated)"
)

type httpGetParams struct {
	URL string `json:"url" jsonschema:"description=Target URL (http or https)"`
}

// HTTPGetTool fetches a URL. HTML pages are reduced to their visible text and
// every result is cut to limit characters.
func HTTPGetTool(client *http.Client, limit int) Tool {
	if client == nil {
		client = http.DefaultClient
	}
	if limit <= 0 {
		limit = DefaultHTTPGetLimit
	}
	return Tool{
		Name:        "http_get",
		Description: "Send an HTTP GET request and return the response body (HTML is converted to plain text).",
		InputSchema: SchemaFor[httpGetParams](),
		Executor: Typed(func(ctx context.Context, p httpGetParams) (string, error) {
			if p.URL == "" {
				return "", fmt.Errorf("url is required")
			}
			if !strings.HasPrefix(p.URL, "http://") && !strings.HasPrefix(p.URL, "https://") {
				return "", fmt.Errorf("unsupported url %q: only http and https are allowed", p.URL)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
			if err != nil {
				return "", fmt.Errorf("build request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			body := io.LimitReader(resp.Body, maxHTTPBodyBytes)
			var text string
			if isHTML(resp.Header.Get("Content-Type")) {
				text, err = htmlText(body)
			} else {
				var raw []byte
				raw, err = io.ReadAll(body)
				text = string(raw)
			}
			if err != nil {
				return "", fmt.Errorf("read body: %w", err)
			}
			return truncate(text, limit), nil
		}),
	}
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mediaType == "text/html" || mediaType == "application/xhtml+xml")
}

func htmlText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + truncatedSuffix
}
