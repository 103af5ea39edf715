// Package arxiv recognises arXiv links and fetches paper metadata from the
// arXiv export API.
package arxiv

import "regexp"

// idPattern matches abstract and PDF links. The scheme is not anchored, so
// http, https and scheme-less links all match; only the abs and pdf path
// segments are accepted.
var idPattern = regexp.MustCompile(`arxiv.org/(?:abs|pdf)/(\d{4}\.\d{5})(?:v\d)?(?:\.pdf)?`)

// FindIDs returns every arXiv id in s in order of appearance.
func FindIDs(s string) []string {
	matches := idPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// ExtractID returns the first arXiv id in url, unmodified.
func ExtractID(url string) (string, bool) {
	m := idPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}
