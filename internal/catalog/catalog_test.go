package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const sampleCatalog = `{
  "items": [
    {"id": {"kind": "youtube#video", "videoId": "a1"}, "snippet": {"title": "Go Concurrency", "description": "channels and goroutines"}},
    {"id": {"kind": "youtube#channel"}, "snippet": {"title": "Go Channel", "description": "a channel, not a video"}},
    {"id": {"kind": "youtube#video", "videoId": "a2"}, "snippet": {"title": "Cooking pasta", "description": "no GO here"}},
    {"id": {"kind": "youtube#video", "videoId": "a3"}, "snippet": {"title": "Gardening", "description": "tomatoes"}},
    {"id": {"kind": "youtube#playlist"}, "snippet": {"title": "Playlist", "description": "mixed"}}
  ]
}`

func mustParse(t *testing.T, data string) *Catalog {
	t.Helper()
	c, err := Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return c
}

func TestParseKeepsOnlyVideos(t *testing.T) {
	c := mustParse(t, sampleCatalog)
	if c.Len() != 3 {
		t.Fatalf("expected 3 videos, got %d", c.Len())
	}
	if _, ok := c.Lookup("a2"); !ok {
		t.Error("expected a2 to be present")
	}
}

func TestSearch(t *testing.T) {
	c := mustParse(t, sampleCatalog)
	ctx := context.Background()

	tests := []struct {
		name    string
		query   Query
		wantIDs []string
		total   int
		pages   int
	}{
		{"empty search returns all", Query{}, []string{"a1", "a2", "a3"}, 3, 1},
		{"matches title or description case-insensitively", Query{Search: "go"}, []string{"a1", "a2"}, 2, 1},
		{"no match", Query{Search: "zzz"}, []string{}, 0, 0},
		{"second page", Query{Page: 2, PageSize: 2}, []string{"a3"}, 3, 2},
		{"page past end", Query{Page: 9, PageSize: 2}, []string{}, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := c.Search(ctx, tt.query)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if page.TotalResults != tt.total {
				t.Errorf("total = %d, want %d", page.TotalResults, tt.total)
			}
			if page.TotalPages != tt.pages {
				t.Errorf("pages = %d, want %d", page.TotalPages, tt.pages)
			}
			refs := page.Refs()
			if len(refs) != len(tt.wantIDs) {
				t.Fatalf("got %d items, want %d", len(refs), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if refs[i].VideoID != id {
					t.Errorf("item %d = %s, want %s", i, refs[i].VideoID, id)
				}
			}
		})
	}
}

func TestSearchDefaults(t *testing.T) {
	c := mustParse(t, sampleCatalog)
	page, err := c.Search(context.Background(), Query{Page: -3})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.CurrentPage != 1 || page.ResultsPerPage != DefaultPageSize {
		t.Errorf("expected page 1 size %d, got page %d size %d", DefaultPageSize, page.CurrentPage, page.ResultsPerPage)
	}
}

func TestEmbeddedCatalog(t *testing.T) {
	c, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded failed: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("embedded catalog is empty")
	}

	page, err := c.Search(context.Background(), Query{Search: "blender"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.TotalResults != 6 {
		t.Errorf("expected 6 blender videos, got %d", page.TotalResults)
	}
	for _, ref := range page.Refs() {
		if ref.Thumbnails.Best() == "" {
			t.Errorf("video %s has no thumbnail", ref.VideoID)
		}
	}
}

func TestServerListVideos(t *testing.T) {
	app := NewServer(NewHandler(zerolog.Nop(), mustParse(t, sampleCatalog), 2))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/videos?search=GO&page=1", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if page.TotalResults != 2 || page.ResultsPerPage != 2 || len(page.Items) != 2 {
		t.Errorf("unexpected page %+v", page)
	}
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, Query) (*Page, error) {
	return nil, errors.New("boom")
}

func TestServerSearchError(t *testing.T) {
	app := NewServer(NewHandler(zerolog.Nop(), failingSearcher{}, 0))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Internal Server Error") {
		t.Errorf("unexpected body %s", body)
	}
}

func TestHealth(t *testing.T) {
	app := NewServer(NewHandler(zerolog.Nop(), mustParse(t, sampleCatalog), 0))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestClientSearch(t *testing.T) {
	c := mustParse(t, sampleCatalog)

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		page, _ := c.Search(r.Context(), Query{
			Search:   r.URL.Query().Get("search"),
			PageSize: 1,
			Page:     2,
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	page, err := client.Search(context.Background(), Query{Search: "go", Page: 2, PageSize: 1})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if gotQuery != "page=2&pagesize=1&search=go" {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if page.TotalPages != 2 || len(page.Items) != 1 || page.Items[0].ID.VideoID != "a2" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestClientBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := client.Search(context.Background(), Query{}); !errors.Is(err, ErrBadStatus) {
		t.Errorf("expected ErrBadStatus, got %v", err)
	}
}

func TestNewClientInvalidURL(t *testing.T) {
	if _, err := NewClient("not a url", nil); err == nil {
		t.Error("expected error for invalid url")
	}
}
