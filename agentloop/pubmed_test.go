package agentloop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEntrezSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "esearch"):
			if got := r.URL.Query().Get("term"); got != "p53 apoptosis" {
				t.Errorf("unexpected term: %q", got)
			}
			w.Write([]byte(`{"esearchresult":{"count":"2","idlist":["111","222"]}}`))
		case strings.Contains(r.URL.Path, "esummary"):
			if got := r.URL.Query().Get("id"); got != "111,222" {
				t.Errorf("unexpected ids: %q", got)
			}
			w.Write([]byte(`{"result":{
				"uids":["111","222"],
				"111":{"uid":"111","title":"p53 and apoptosis","fulljournalname":"Cell","pubdate":"2024 Jan","authors":[{"name":"Smith J"},{"name":"Doe A"}]},
				"222":{"uid":"222","title":"Apoptotic pathways","fulljournalname":"Nature","pubdate":"2023 Dec","authors":[]}
			}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewEntrezClient(WithEntrezBaseURL(server.URL))
	results, err := client.Search(context.Background(), "p53 apoptosis", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].PMID != "111" || results[0].Title != "p53 and apoptosis" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[0].Journal != "Cell" || len(results[0].Authors) != 2 {
		t.Errorf("metadata not carried: %+v", results[0])
	}
	if results[1].PMID != "222" {
		t.Errorf("esearch ordering must be preserved: %+v", results[1])
	}
}

func TestEntrezSearchNoHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"esearchresult":{"count":"0","idlist":[]}}`))
	}))
	defer server.Close()

	client := NewEntrezClient(WithEntrezBaseURL(server.URL))
	results, err := client.Search(context.Background(), "zxqv nonsense", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestEntrezSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewEntrezClient(WithEntrezBaseURL(server.URL))
	if _, err := client.Search(context.Background(), "query", 10); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestFormatLiteratureResults(t *testing.T) {
	out := FormatLiteratureResults([]LiteratureResult{
		{
			PMID: "111", Title: "A study", Journal: "Cell", PubDate: "2024",
			Authors: []string{"A", "B", "C", "D"},
		},
	})
	if !strings.Contains(out, "A study") || !strings.Contains(out, "PMID: 111") {
		t.Errorf("unexpected formatting: %q", out)
	}
	if !strings.Contains(out, "et al.") {
		t.Errorf("long author lists are abbreviated: %q", out)
	}

	if got := FormatLiteratureResults(nil); got != "No articles found." {
		t.Errorf("unexpected empty formatting: %q", got)
	}
}
