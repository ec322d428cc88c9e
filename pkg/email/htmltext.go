package email

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	blankLinesPattern = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
)

// HTMLToText converts an HTML body to plain text for field extraction and
// display. Two-column table rows are flattened to "Label: Value" lines since
// reporting add-ins commonly render metadata as tables. Falls back to plain
// tag stripping when the markup cannot be parsed.
func HTMLToText(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return stripTags(htmlContent)
	}

	doc.Find("script, style").Remove()

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() != 2 {
			return
		}
		label := strings.TrimSpace(cells.Eq(0).Text())
		value := strings.TrimSpace(cells.Eq(1).Text())
		if label == "" || value == "" {
			return
		}
		label = strings.TrimRight(label, ":")
		row.SetHtml("<td>" + label + ": " + value + "</td>")
	})

	// Line breaks per block-level element, then collapse the excess.
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote").AfterHtml("\n")

	text := doc.Text()

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	text = strings.Join(lines, "\n")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// CleanHTML returns a re-serialized copy of the HTML body for display. Going
// through the parser normalizes malformed markup; the original content is
// returned when it cannot be parsed.
func CleanHTML(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	rendered, err := doc.Html()
	if err != nil {
		return htmlContent
	}

	return rendered
}

func stripTags(htmlContent string) string {
	text := tagPattern.ReplaceAllString(htmlContent, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
