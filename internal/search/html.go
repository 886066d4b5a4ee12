package search

import (
	"strings"

	"golang.org/x/net/html"
)

// StripTags removes HTML markup from an engine snippet, returning the text
// content with whitespace collapsed. Input that is already plain text comes
// back unchanged apart from whitespace normalization.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseSpace(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// Tag boundaries separate words in rendered text.
			b.WriteByte(' ')
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
