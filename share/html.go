package share

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// htmlAnchor takes the first http(s) link out of a rich-text share body.
// Some producers send the link only as an anchor whose visible text is a title.
func (e *Extractor) htmlAnchor(req Request) (string, bool) {
	body := strings.TrimSpace(req.HTML)
	if body == "" {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", false
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if IsValidURL(href) {
			found = href
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}
	return e.scan(doc.Text())
}
