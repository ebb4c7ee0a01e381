package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDownloadOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "TestBot/1.0" {
			t.Errorf("User-Agent = %q, want TestBot/1.0", got)
		}
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	f := New("TestBot/1.0")
	body, err := f.Download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if body != "<html><body>hi</body></html>" {
		t.Errorf("body = %q", body)
	}
}

func TestDownloadNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New("TestBot/1.0")
	if _, err := f.Download(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 status")
	}
}

func TestDownloadFollowsRedirects(t *testing.T) {
	var final string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	final = srv.URL + "/start"

	f := New("TestBot/1.0")
	body, err := f.Download(context.Background(), final)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if body != "landed" {
		t.Errorf("body = %q, want landed", body)
	}
}

func TestExtractLinksResolution(t *testing.T) {
	tests := []struct {
		name string
		body string
		base string
		want []string
	}{
		{
			name: "absolute and root relative and path relative",
			body: `<a href="http://other.test/x">a</a>
			       <a href="/root">b</a>
			       <a href="sibling.html">c</a>`,
			base: "http://example.test/dir/page.html",
			want: []string{
				"http://other.test/x",
				"http://example.test/root",
				"http://example.test/dir/sibling.html",
			},
		},
		{
			name: "fragment and filtered schemes are skipped",
			body: `<a href="#top">skip</a>
			       <a href="javascript:void(0)">skip</a>
			       <a href="mailto:a@b.com">skip</a>
			       <a href="tel:123">skip</a>
			       <a href="">skip</a>
			       <a href="/keep#section">keep</a>`,
			base: "http://example.test/dir/page.html",
			want: []string{"http://example.test/keep"},
		},
		{
			name: "dedup preserves first-seen order",
			body: `<a href="/a">1</a><a href="/b">2</a><a href="/a">3</a>`,
			base: "http://example.test/",
			want: []string{"http://example.test/a", "http://example.test/b"},
		},
		{
			name: "missing scheme gets http prefix",
			body: `<a href="bare.example.com/page">x</a>`,
			base: "ftp-less-base/no-scheme/",
			want: []string{"http://ftp-less-base/no-scheme/bare.example.com/page"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractLinks(tc.body, tc.base)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("link[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}
