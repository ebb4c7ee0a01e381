// Package indexer turns a downloaded HTML body into a title, a cleaned
// plain-text rendering, and per-term occurrence counts. It is stateless and
// safe to call from many crawl workers concurrently.
package indexer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dangpham/gophersearch/internal/model"
)

const (
	minTermLength = 3
	maxTermLength = 32
)

// Error reports HTML input that defeated the cleaning pipeline. The
// regexp-based pipeline below never panics on malformed byte input, so in
// practice this type has no live producer; it is kept so callers can match
// on it per the error taxonomy this design documents.
type Error struct {
	URL string
	Msg string
}

func (e *Error) Error() string { return "index " + e.URL + ": " + e.Msg }

var (
	scriptRegexp = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRegexp  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	tagRegexp    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRegexp  = regexp.MustCompile(`\s+`)

	// Everything except ASCII alphanumerics, whitespace, and the Cyrillic
	// letters а-я / А-Я / ё / Ё is stripped. The contiguous range below
	// covers uppercase and lowercase together (U+0410 through U+044F is one
	// unbroken run in the Cyrillic block); Ё/ё sit outside it and are
	// listed explicitly.
	punctRegexp = regexp.MustCompile(`[^a-zA-Z0-9\s\x{0410}-\x{044F}\x{0401}\x{0451}]`)

	titleTagRegexp = regexp.MustCompile(`(?is)<title\b[^>]*>(.*?)</title>`)
	h1TagRegexp    = regexp.MustCompile(`(?is)<h1\b[^>]*>(.*?)</h1>`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// Index extracts a title, a cleaned plain-text body, and normalized term
// frequencies from body, sorted by frequency descending.
func Index(body, url string) model.IndexResult {
	title := extractTitle(body, url)
	clean := cleanHTML(body)
	freqs := countTerms(clean)

	return model.IndexResult{
		Title:           title,
		CleanContent:    clean,
		TermFrequencies: freqs,
	}
}

func extractTitle(body, url string) string {
	if m := titleTagRegexp.FindStringSubmatch(body); m != nil {
		if t := innerText(m[1]); t != "" {
			return t
		}
	}
	if m := h1TagRegexp.FindStringSubmatch(body); m != nil {
		if t := innerText(m[1]); t != "" {
			return t
		}
	}
	if seg := lastPathSegment(url); seg != "" {
		return seg
	}
	return "Untitled"
}

func innerText(html string) string {
	text := tagRegexp.ReplaceAllString(html, " ")
	text = spaceRegexp.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func lastPathSegment(rawURL string) string {
	u := rawURL
	if idx := strings.IndexByte(u, '?'); idx >= 0 {
		u = u[:idx]
	}
	idx := strings.LastIndexByte(u, '/')
	if idx < 0 {
		return ""
	}
	return u[idx+1:]
}

func cleanHTML(body string) string {
	text := scriptRegexp.ReplaceAllString(body, " ")
	text = styleRegexp.ReplaceAllString(text, " ")
	text = entityReplacer.Replace(text)
	text = tagRegexp.ReplaceAllString(text, " ")
	text = punctRegexp.ReplaceAllString(text, " ")
	text = spaceRegexp.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func countTerms(clean string) []model.TermFrequency {
	if clean == "" {
		return nil
	}

	counts := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		normalized, ok := normalizeToken(token)
		if !ok {
			continue
		}
		counts[normalized]++
	}

	freqs := make([]model.TermFrequency, 0, len(counts))
	for term, freq := range counts {
		freqs = append(freqs, model.TermFrequency{Term: term, Freq: freq})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Freq != freqs[j].Freq {
			return freqs[i].Freq > freqs[j].Freq
		}
		return freqs[i].Term < freqs[j].Term
	})
	return freqs
}

// normalizeToken lowercases ASCII and Cyrillic letters (А-Я, Ё -> а-я, ё)
// and reports whether the result passes the [3,32]-byte, has-a-letter
// filter. Length is measured in bytes, not runes, matching the source this
// design was distilled from: a short Cyrillic token can pass the byte-length
// floor that a rune-length check would reject, and that quirk is preserved
// deliberately.
func normalizeToken(token string) (string, bool) {
	var b strings.Builder
	b.Grow(len(token))
	for _, r := range token {
		b.WriteRune(FoldCase(r))
	}
	normalized := b.String()

	if len(normalized) < minTermLength || len(normalized) > maxTermLength {
		return "", false
	}

	hasLetter := false
	for _, r := range normalized {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return "", false
	}
	return normalized, true
}

// FoldCase lowercases ASCII A-Z and Cyrillic А-Я/Ё the same way normalizeToken
// does. The Query Frontend reuses it on query tokens, deliberately fixing the
// original source's disagreement between its indexer and its query parser
// over Cyrillic case folding.
func FoldCase(r rune) rune {
	switch {
	case r >= 'A' && r <= 'Z':
		return r + 32
	case r == 'Ё':
		return 'ё'
	case r >= 'А' && r <= 'Я':
		return r + 32
	default:
		return r
	}
}
