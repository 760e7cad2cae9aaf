package yahoo

import (
	"regexp"
	"strconv"
	"strings"
)

// crumbPatterns are tried in order against the bootstrap page. Yahoo has
// moved the crumb between page layouts several times; new layouts are
// handled by appending a pattern, not by touching the session logic.
var crumbPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"CrumbStore"\s*:\s*\{"crumb"\s*:\s*"([^"]+)"\}`),
	regexp.MustCompile(`window\.crumb\s*=\s*"([^"]+)"`),
	regexp.MustCompile(`"crumb"\s*:\s*"([^"]+)"`),
}

func extractCrumb(body string) (string, bool) {
	for _, p := range crumbPatterns {
		if m := p.FindStringSubmatch(body); m != nil {
			return unescapeCrumb(m[1]), true
		}
	}
	return "", false
}

// unescapeCrumb resolves JSON escapes (crumbs often embed /).
func unescapeCrumb(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\/`, "/")
	if !strings.Contains(s, `\`) {
		return s
	}
	if out, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return out
	}
	return s
}
