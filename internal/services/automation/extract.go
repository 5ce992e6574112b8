package automation

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata holds fields extracted from a rendered page.
type Metadata struct {
	Title       string
	Description string
}

// ExtractMetadata parses rendered HTML and pulls out the page title and
// meta description. The title falls back through <title>, og:title and the
// first <h1>; pages with none of them yield an empty title rather than an
// error.
func ExtractMetadata(html string) Metadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Metadata{}
	}

	return Metadata{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
	}
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}

	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		if title := strings.TrimSpace(ogTitle); title != "" {
			return title
		}
	}

	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}

	return ""
}

func extractDescription(doc *goquery.Document) string {
	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		if d := strings.TrimSpace(desc); d != "" {
			return d
		}
	}

	if ogDesc, exists := doc.Find("meta[property='og:description']").Attr("content"); exists {
		if d := strings.TrimSpace(ogDesc); d != "" {
			return d
		}
	}

	return ""
}
