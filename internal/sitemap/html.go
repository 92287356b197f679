package sitemap

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLTitle returns the page title when data looks like an HTML document.
// Servers commonly answer a missing sitemap with a 200 HTML page, and the
// title is usually the most useful hint about what went wrong.
func HTMLTitle(data []byte) (string, bool) {
	if !strings.HasPrefix(http.DetectContentType(data), "text/html") {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", false
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return title, true
}
