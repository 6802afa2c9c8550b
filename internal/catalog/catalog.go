package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed videos.json
var embeddedCatalog []byte

type listResponse struct {
	Items []Item `json:"items"`
}

// Catalog is an in-memory video catalog. It is immutable after construction and
// safe for concurrent use.
type Catalog struct {
	items []Item
}

// Parse reads a catalog in the YouTube search-list shape. Non-video items
// (channels, playlists) are dropped.
func Parse(r io.Reader) (*Catalog, error) {
	var resp listResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	items := make([]Item, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.IsVideo() {
			items = append(items, item)
		}
	}
	return &Catalog{items: items}, nil
}

// LoadFile reads a catalog from disk
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// LoadEmbedded returns the sample catalog compiled into the binary
func LoadEmbedded() (*Catalog, error) {
	return Parse(bytes.NewReader(embeddedCatalog))
}

// Load picks the file at path, or the embedded sample when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return LoadEmbedded()
	}
	return LoadFile(path)
}

// Len returns the number of videos in the catalog
func (c *Catalog) Len() int {
	return len(c.items)
}

// Lookup finds a video by id
func (c *Catalog) Lookup(videoID string) (VideoRef, bool) {
	for _, item := range c.items {
		if item.ID.VideoID == videoID {
			return item.Ref(), true
		}
	}
	return VideoRef{}, false
}

// Search filters by a case-insensitive substring of title or description and
// returns the requested page. Pages past the end are empty, not errors.
func (c *Catalog) Search(ctx context.Context, q Query) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.normalized()
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	matched := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		if needle == "" ||
			strings.Contains(strings.ToLower(item.Snippet.Title), needle) ||
			strings.Contains(strings.ToLower(item.Snippet.Description), needle) {
			matched = append(matched, item)
		}
	}

	start := (q.Page - 1) * q.PageSize
	end := start + q.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	return &Page{
		CurrentPage:    q.Page,
		TotalPages:     (len(matched) + q.PageSize - 1) / q.PageSize,
		TotalResults:   len(matched),
		ResultsPerPage: q.PageSize,
		Items:          matched[start:end],
	}, nil
}
