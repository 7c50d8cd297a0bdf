package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LiteratureResult is one article from a literature search.
type LiteratureResult struct {
	PMID    string   `json:"pmid"`
	Title   string   `json:"title"`
	Journal string   `json:"journal,omitempty"`
	PubDate string   `json:"pub_date,omitempty"`
	Authors []string `json:"authors,omitempty"`
}

// Searcher finds literature for a query. The search_literature tool is
// registered only when the loop is given a Searcher.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]LiteratureResult, error)
}

const defaultEntrezBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// EntrezClient searches PubMed through the NCBI E-utilities (esearch for
// IDs, esummary for metadata).
type EntrezClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// EntrezOption configures an EntrezClient.
type EntrezOption func(*EntrezClient)

// WithEntrezAPIKey sets the NCBI API key (raises the rate limit).
func WithEntrezAPIKey(key string) EntrezOption {
	return func(c *EntrezClient) { c.apiKey = key }
}

// WithEntrezBaseURL overrides the E-utilities endpoint, mainly for tests.
func WithEntrezBaseURL(u string) EntrezOption {
	return func(c *EntrezClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithEntrezHTTPClient overrides the underlying HTTP client.
func WithEntrezHTTPClient(hc *http.Client) EntrezOption {
	return func(c *EntrezClient) { c.httpClient = hc }
}

// NewEntrezClient creates a PubMed searcher.
func NewEntrezClient(opts ...EntrezOption) *EntrezClient {
	c := &EntrezClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultEntrezBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type esummaryDoc struct {
	UID             string `json:"uid"`
	Title           string `json:"title"`
	FullJournalName string `json:"fulljournalname"`
	PubDate         string `json:"pubdate"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// Search runs esearch then esummary and merges the metadata.
func (c *EntrezClient) Search(ctx context.Context, query string, maxResults int) ([]LiteratureResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	ids, err := c.esearch(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.esummary(ctx, ids)
}

func (c *EntrezClient) esearch(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {fmt.Sprintf("%d", maxResults)},
		"retmode": {"json"},
	}
	var parsed esearchResponse
	if err := c.get(ctx, "esearch.fcgi", params, &parsed); err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}
	return parsed.ESearchResult.IDList, nil
}

func (c *EntrezClient) esummary(ctx context.Context, ids []string) ([]LiteratureResult, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}
	var parsed esummaryResponse
	if err := c.get(ctx, "esummary.fcgi", params, &parsed); err != nil {
		return nil, fmt.Errorf("pubmed summary: %w", err)
	}

	// Preserve esearch ranking; the result map is keyed by UID.
	var results []LiteratureResult
	for _, id := range ids {
		raw, ok := parsed.Result[id]
		if !ok {
			continue
		}
		var doc esummaryDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		r := LiteratureResult{
			PMID:    id,
			Title:   doc.Title,
			Journal: doc.FullJournalName,
			PubDate: doc.PubDate,
		}
		for _, a := range doc.Authors {
			r.Authors = append(r.Authors, a.Name)
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *EntrezClient) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FormatLiteratureResults renders search results for the model.
func FormatLiteratureResults(results []LiteratureResult) string {
	if len(results) == 0 {
		return "No articles found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d articles:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Title)
		if len(r.Authors) > 0 {
			authors := r.Authors
			if len(authors) > 3 {
				authors = append(append([]string{}, authors[:3]...), "et al.")
			}
			fmt.Fprintf(&sb, "   %s\n", strings.Join(authors, ", "))
		}
		if r.Journal != "" || r.PubDate != "" {
			fmt.Fprintf(&sb, "   %s (%s)\n", r.Journal, r.PubDate)
		}
		fmt.Fprintf(&sb, "   PMID: %s\n", r.PMID)
	}
	return sb.String()
}
