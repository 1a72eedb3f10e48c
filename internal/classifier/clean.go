package classifier

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxInputChars caps the email text sent to the model
const MaxInputChars = 3000

var (
	imgTagPattern = regexp.MustCompile(`<img[^>]+>`)
	urlPattern    = regexp.MustCompile(`https?://\S+`)
)

// CleanEmail drops image tags and URLs, collapses whitespace and truncates the
// result to MaxInputChars characters.
func CleanEmail(text string) string {
	text = imgTagPattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= MaxInputChars {
		return text
	}
	return string([]rune(text)[:MaxInputChars])
}
