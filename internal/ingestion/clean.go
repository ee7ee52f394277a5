package ingestion

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cleanText strips markup and collapses runs of whitespace. Text that is
// blank afterwards is reported as missing.
func cleanText(s string) (string, bool) {
	if strings.ContainsAny(s, "<&") {
		s = stripHTML(s)
	}
	s = strings.Join(strings.Fields(s), " ")
	return s, s != ""
}

func stripHTML(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li").Each(func(_ int, sel *goquery.Selection) {
		sel.AfterHtml(" ")
	})

	return doc.Text()
}
