package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanText strips HTML tags and decodes entities in model-written text.
// Line breaks are kept so markdown bullets survive; runs of spaces are
// collapsed.
func CleanText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
		if err == nil {
			s = doc.Text()
		}
	}

	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
