// Package extract pulls structured indicators (URLs, phone numbers) out of
// free-form email text written by analysts and reporters.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// URLParseResult is one extracted URL. Only its fields get folded into the
// normalized email record; the result itself is never persisted.
type URLParseResult struct {
	Original   string
	Normalized string
	Domain     string
}

// Threat-intel reports routinely defang URLs (hxxp://, example[.]com) so they
// cannot be clicked by accident. All fanged forms are candidates too.
var (
	urlPattern = regexp.MustCompile(`(?i)(?:https?://|ftp://|www\.)[^\s<>"]+`)

	fangedURLPattern = regexp.MustCompile(`(?i)(?:hxxps?://|ftp://|www\.)[^\s<>"]+`)

	fangedDomainPattern = regexp.MustCompile(
		`(?i)[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?` +
			`(?:\[\.\]|\(\.\)|\{\.\}|\[dot\]|\(dot\)|\{dot\})[a-z]{2,}` +
			`(?:(?:\[\.\]|\(\.\)|\{\.\}|\[dot\]|\(dot\)|\{dot\})[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)*`)

	fangedScheme = regexp.MustCompile(`(?i)^hxxp(s?)://`)
	fangedDot    = regexp.MustCompile(`(?i)\[\.\]|\(\.\)|\{\.\}|\[dot\]|\(dot\)|\{dot\}`)
)

// ExtractURLs scans text for URL-shaped substrings, including defanged forms,
// and returns them normalized and deduplicated by lowercased normalized form,
// preserving first-seen order. Candidates whose registrable domain cannot be
// resolved are discarded.
func ExtractURLs(text string) []URLParseResult {
	if text == "" {
		return nil
	}

	seen := make(map[string]bool)
	var results []URLParseResult

	add := func(original string) {
		normalized := NormalizeURL(original)
		domain := RegistrableDomain(normalized)
		if domain == "" {
			return
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			return
		}
		seen[key] = true
		results = append(results, URLParseResult{
			Original:   original,
			Normalized: normalized,
			Domain:     domain,
		})
	}

	// Blank out full-URL matches as they are consumed so the standalone
	// domain scan below cannot re-match a domain inside one of them.
	remainder := []byte(text)
	blank := func(spans [][]int) {
		for _, span := range spans {
			for i := span[0]; i < span[1]; i++ {
				remainder[i] = ' '
			}
		}
	}

	for _, match := range urlPattern.FindAllString(text, -1) {
		add(match)
	}
	blank(urlPattern.FindAllStringIndex(text, -1))

	for _, match := range fangedURLPattern.FindAllString(text, -1) {
		add(match)
	}
	blank(fangedURLPattern.FindAllStringIndex(text, -1))

	// Standalone fanged domains without any protocol prefix.
	for _, match := range fangedDomainPattern.FindAllString(string(remainder), -1) {
		add(match)
	}

	return results
}

// DefangURL reverses common defanging conventions: hxxp -> http and
// bracketed dot markers ([.], (.), {.}, [dot], ...) back to plain dots.
func DefangURL(url string) string {
	url = fangedScheme.ReplaceAllString(url, "http$1://")
	return fangedDot.ReplaceAllString(url, ".")
}

// NormalizeURL defangs a candidate, strips trailing sentence punctuation and
// qualifies scheme-less matches (bare www. and standalone domains) with an
// https scheme.
func NormalizeURL(url string) string {
	url = DefangURL(url)
	url = strings.TrimSpace(url)
	url = strings.TrimRight(url, `).,;"'`)
	if !strings.Contains(url, "://") {
		return fmt.Sprintf("https://%s", url)
	}
	return url
}

// RegistrableDomain resolves the domain directly below the public suffix
// (test.co.uk -> test.co.uk, not co.uk), lowercased. Empty when the host
// has no registrable domain.
func RegistrableDomain(url string) string {
	host := hostOf(url)
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
	if err != nil {
		return ""
	}
	return domain
}

func hostOf(url string) string {
	if idx := strings.Index(url, "://"); idx != -1 {
		url = url[idx+3:]
	}
	for _, sep := range []string{"/", "?", "#"} {
		if idx := strings.Index(url, sep); idx != -1 {
			url = url[:idx]
		}
	}
	if idx := strings.Index(url, "@"); idx != -1 {
		url = url[idx+1:]
	}
	if idx := strings.LastIndex(url, ":"); idx != -1 && !strings.Contains(url[idx:], "]") {
		url = url[:idx]
	}
	return strings.Trim(url, ".")
}
