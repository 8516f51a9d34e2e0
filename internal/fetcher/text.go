package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TextFetcher wraps another Fetcher and reduces the HTML it returns to the
// visible text of the document body.
type TextFetcher struct {
	Next Fetcher
}

// NewTextFetcher creates a TextFetcher around next.
func NewTextFetcher(next Fetcher) *TextFetcher {
	return &TextFetcher{Next: next}
}

// Fetch retrieves url through Next and extracts its body text.
func (f *TextFetcher) Fetch(ctx context.Context, url string) (string, error) {
	raw, err := f.Next.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return ExtractText(raw)
}

// ExtractText parses an HTML document and returns the whitespace-collapsed
// text of its body, without script, style and noscript contents.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
}
