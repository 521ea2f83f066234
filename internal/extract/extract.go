// Package extract scans free-form message text for URL candidates.
//
// Recognition policy, in one place:
//
//   - explicit http:// or https:// URLs
//   - www.-prefixed hosts without a scheme
//   - well-known short-link hosts (bit.ly, t.co, youtu.be, ...) without a scheme
//   - bare domains whose suffix is on a closed TLD allow-list, so ordinary
//     words containing dots are not mistaken for hosts
//
// Scheme-less matches are normalized by prepending https://. Trailing
// sentence punctuation and wrapping quotes are stripped. Candidates are
// ordered by their position in the input and deduplicated by normalized form,
// first occurrence winning. Extraction never fails; no match yields an empty
// slice.
package extract

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

const pathChars = `[/\w\-._~:?#\[\]@!$&'()*+,;=%]`

var (
	// boundary admits start-of-text, whitespace, and common wrappers so
	// (example.com) and 'www.x.com' are still recognized.
	boundary = `(?:^|[\s('"])`

	schemeRe = regexp.MustCompile(`(?i)(https?://[-\w.]+(?::\d+)?` + pathChars + `*)`)
	wwwRe    = regexp.MustCompile(`(?i)` + boundary + `(www\.[-\w.]+\.\w{2,}` + pathChars + `*)`)
	shortRe  = regexp.MustCompile(`(?i)` + boundary + `((?:bit\.ly|t\.co|goo\.gl|tinyurl\.com|ow\.ly|is\.gd|buff\.ly|youtu\.be|lnkd\.in|rb\.gy)/[\w\-]+)`)
	domainRe = regexp.MustCompile(`(?i)` + boundary + `([a-zA-Z0-9][-a-zA-Z0-9]*(?:\.[a-zA-Z0-9][-a-zA-Z0-9]*)*\.(?:com|org|net|edu|gov|io|co|ai|app|dev|blog|tech|info|me|us|uk|ca|au|jp)\b(?:/` + pathChars + `*)?)`)

	trailingPunct = regexp.MustCompile(`[.,;:!?)\]}]+$`)
)

type candidate struct {
	pos int
	url string
}

// Extract returns the normalized URLs found in text, ordered by position.
func Extract(text string) []string {
	if text == "" {
		return nil
	}

	var cands []candidate
	for _, re := range []*regexp.Regexp{schemeRe, wwwRe, shortRe, domainRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			if start < 0 {
				continue
			}
			cands = append(cands, candidate{pos: start, url: text[start:end]})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].pos < cands[j].pos })

	seen := make(map[string]struct{}, len(cands))
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		u, ok := normalize(c.url)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// normalize cleans one raw match and reports whether it survives validation.
func normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	raw = trailingPunct.ReplaceAllString(raw, "")
	raw = strings.Trim(raw, `'"`)
	if raw == "" {
		return "", false
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return raw, true
}
