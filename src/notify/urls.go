package notify

import (
	"regexp"
	"strings"
)

var urlNoEmbedRegex = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// WrapURLsNoEmbed wraps URLs in angle brackets so Discord does not embed
// them. Trailing punctuation stays outside the brackets.
func WrapURLsNoEmbed(text string) string {
	matches := urlNoEmbedRegex.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(matches)*2)

	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(text[last:start])
		last = end

		if start > 0 && text[start-1] == '<' && end < len(text) && text[end] == '>' {
			b.WriteString(text[start:end])
			continue
		}
		link := strings.TrimRight(text[start:end], ".,;:!?)")
		if link == "" {
			b.WriteString(text[start:end])
			continue
		}
		b.WriteString("<" + link + ">")
		b.WriteString(text[start+len(link) : end])
	}

	b.WriteString(text[last:])
	return b.String()
}
