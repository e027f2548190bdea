package backup

import (
	"regexp"
	"strings"
)

// tagPattern matches "#tag" and "##tag" tokens together with their leading space.
// Tag names are ASCII word characters; "#독서" is kept as title text.
var tagPattern = regexp.MustCompile(`\s*#{1,2}[A-Za-z0-9_]+`)

// maxTagPasses bounds CleanTitle for inputs like "###a".
const maxTagPasses = 3

// CleanTitle strips hashtag tokens from an interval or task title.
func CleanTitle(s string) string {
	for range maxTagPasses {
		next := strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}
