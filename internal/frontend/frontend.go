// Package frontend implements the read-only HTTP search surface: a seed
// form, a multi-term AND search against the Store, and the HTML rendering
// for both results and errors. The wire contract (status codes, headers,
// form field name) is carried over verbatim from SearchServer::handleRequest
// in the program this design generalizes; only the transport (chi instead
// of a hand-rolled socket reader) changed.
package frontend

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"

	"github.com/dangpham/gophersearch/internal/indexer"
	"github.com/dangpham/gophersearch/internal/model"
)

const (
	minTokenLength = 3
	maxTokenLength = 32
	maxTokens      = 4
	resultLimit    = 10
)

// Store is the subset of *store.Store the frontend reads from. It never
// writes.
type Store interface {
	Search(ctx context.Context, terms []string, limit int) ([]model.SearchResult, error)
}

// Frontend serves the search form and handles query submissions.
type Frontend struct {
	store Store
	log   *slog.Logger
}

// New builds a Frontend over an already-open Store.
func New(store Store, log *slog.Logger) *Frontend {
	if log == nil {
		log = slog.Default()
	}
	return &Frontend{store: store, log: log}
}

// Router returns the chi-routed handler: GET /, /search, /index.html serve
// the seed form; POST /search evaluates a query. Every other route falls
// through to chi's default 404/405 handling.
func (f *Frontend) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", f.handleSearchPage)
	r.Get("/search", f.handleSearchPage)
	r.Get("/index.html", f.handleSearchPage)
	r.Post("/search", f.handleSearchSubmit)

	return r
}

func (f *Frontend) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusOK, renderSearchPage())
}

func (f *Frontend) handleSearchSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeHTML(w, http.StatusBadRequest, renderError("malformed form body"))
		return
	}

	raw := r.PostForm.Get("query")
	if raw == "" {
		writeHTML(w, http.StatusBadRequest, renderError("empty search query"))
		return
	}

	terms, err := parseQuery(raw)
	if err != nil {
		writeHTML(w, http.StatusBadRequest, renderError(err.Error()))
		return
	}

	results, err := f.store.Search(r.Context(), terms, resultLimit)
	if err != nil {
		f.log.Error("search failed", "err", err, "terms", terms)
		writeHTML(w, http.StatusInternalServerError, renderError("search failed"))
		return
	}

	writeHTML(w, http.StatusOK, renderResults(raw, results))
}

// writeHTML sets Content-Length and Connection: close on every response,
// matching formatHttpResponse's fixed header set.
func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// queryError reports a rejected query; its message becomes the 400 body.
type queryError struct{ msg string }

func (e *queryError) Error() string { return e.msg }

// parseQuery tokenizes raw on whitespace, strips punctuation other than
// '-', folds case with the Indexer's Cyrillic-aware rule (see FoldCase's
// doc comment), and keeps tokens of length [3, 32] containing at least one
// letter. More than maxTokens valid tokens, or zero, is a queryError.
func parseQuery(raw string) ([]string, error) {
	var terms []string
	for _, field := range strings.Fields(raw) {
		token := normalizeQueryToken(field)
		if token == "" {
			continue
		}
		terms = append(terms, token)
		if len(terms) > maxTokens {
			return nil, &queryError{msg: "too many words in query (maximum 4)"}
		}
	}
	if len(terms) == 0 {
		return nil, &queryError{msg: "no valid words in query"}
	}
	return terms, nil
}

func normalizeQueryToken(field string) string {
	var b strings.Builder
	b.Grow(len(field))
	for _, r := range field {
		if r == '-' || !unicode.IsPunct(r) {
			b.WriteRune(indexer.FoldCase(r))
		}
	}
	token := b.String()

	if len(token) < minTokenLength || len(token) > maxTokenLength {
		return ""
	}
	for _, r := range token {
		if unicode.IsLetter(r) {
			return token
		}
	}
	return ""
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>gophersearch</title></head>
<body>
<h1>gophersearch</h1>
<form method="POST" action="/search">
<input type="text" name="query" value="{{.Query}}" placeholder="search terms" required>
<button type="submit">Search</button>
</form>
{{if .Error}}<div class="error"><p>{{.Error}}</p></div>{{end}}
{{if .ShowResults}}
{{if .Results}}
<p>{{len .Results}} result(s)</p>
<ul>
{{range .Results}}<li><a href="{{.URL}}">{{.Title}}</a> — {{.URL}} (relevance {{.Relevance}})</li>
{{end}}
</ul>
{{else}}
<p>No results found.</p>
{{end}}
{{end}}
</body></html>`))

type pageData struct {
	Query       string
	Error       string
	ShowResults bool
	Results     []model.SearchResult
}

func renderSearchPage() string {
	return render(pageData{})
}

func renderResults(query string, results []model.SearchResult) string {
	return render(pageData{Query: query, ShowResults: true, Results: results})
}

func renderError(message string) string {
	return render(pageData{Error: message})
}

func render(data pageData) string {
	var b strings.Builder
	if err := pageTemplate.Execute(&b, data); err != nil {
		return "<html><body>internal rendering error</body></html>"
	}
	return b.String()
}
