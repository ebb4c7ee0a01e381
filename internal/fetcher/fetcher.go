// Package fetcher performs the crawler's single HTTP(S) GET per URL and
// extracts outbound links from the returned body. It keeps no state between
// calls and is safe for concurrent use by many workers.
package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	connectTimeout = 10 * time.Second
	totalTimeout   = 30 * time.Second
	defaultAgent   = "GopherSearchBot/1.0"
)

// Error wraps a transport failure or a non-200 final status for a single
// URL. Callers log and abandon the task on this error; the Fetcher never
// retries.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher performs GETs with a fixed connect/total timeout budget and a
// permissive TLS stance (verification disabled by default, matching the
// source this design was distilled from — see SPEC_FULL.md §12).
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// Option configures a Fetcher at construction time.
type Option func(*Fetcher)

// WithTLSVerification re-enables certificate verification. Disabled is the
// default for parity with the original crawler; production deployments
// should opt back in.
func WithTLSVerification(verify bool) Option {
	return func(f *Fetcher) {
		f.client.Transport.(*http.Transport).TLSClientConfig.InsecureSkipVerify = !verify
	}
}

// New builds a Fetcher identifying itself with userAgent. An empty
// userAgent falls back to the crawler's default identity.
func New(userAgent string, opts ...Option) *Fetcher {
	if userAgent == "" {
		userAgent = defaultAgent
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:     dialer.DialContext,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout:   totalTimeout,
			Transport: transport,
		},
		userAgent: userAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Download performs one GET against rawURL, following redirects. It fails
// with *Error when the transport fails or the final response status is not
// 200 OK.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{URL: rawURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{URL: rawURL, Err: err}
	}
	return string(body), nil
}

var anchorHrefRegexp = regexp.MustCompile(`(?i)<a\s[^>]*href\s*=\s*["']([^"']*)["']`)

// ExtractLinks parses anchors out of body and resolves each href against
// baseURL, returning absolute URLs in first-seen order with duplicates
// removed. No state is retained between calls.
func ExtractLinks(body, baseURL string) []string {
	matches := anchorHrefRegexp.FindAllStringSubmatch(body, -1)

	seen := make(map[string]bool, len(matches))
	links := make([]string, 0, len(matches))

	for _, m := range matches {
		href := strings.TrimSpace(m[1])
		if !keepHref(href) {
			continue
		}

		resolved := resolve(baseURL, href)
		resolved = stripFragment(resolved)
		if resolved == "" {
			continue
		}
		if !strings.Contains(resolved, "://") && !strings.HasPrefix(resolved, "/") {
			resolved = "http://" + resolved
		}

		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		links = append(links, resolved)
	}
	return links
}

func keepHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"):
		return false
	}
	return true
}

func resolve(base, href string) string {
	if strings.Contains(href, "://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return schemeAuthority(base) + href
	}
	idx := strings.LastIndexByte(base, '/')
	if idx < 0 {
		return base + "/" + href
	}
	return base[:idx+1] + href
}

func schemeAuthority(base string) string {
	idx := strings.Index(base, "://")
	if idx < 0 {
		return base
	}
	rest := base[idx+3:]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		return base[:idx+3+slash]
	}
	return base
}

func stripFragment(u string) string {
	if idx := strings.IndexByte(u, '#'); idx >= 0 {
		return u[:idx]
	}
	return u
}
