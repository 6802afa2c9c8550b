// Package catalog serves the fixed list of playable videos: loading, search,
// pagination, and the HTTP surface in front of them.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// KindVideo is the only item kind the catalog exposes
const KindVideo = "youtube#video"

// DefaultPageSize applies when a query does not set one
const DefaultPageSize = 10

// ErrBadStatus is returned by the HTTP client for non-2xx responses
var ErrBadStatus = errors.New("catalog: unexpected http status")

// Thumbnail is one rendition of a video preview image
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Thumbnails holds the renditions published for a video
type Thumbnails struct {
	Default Thumbnail `json:"default"`
	Medium  Thumbnail `json:"medium"`
	High    Thumbnail `json:"high"`
}

// Best returns the URL of the largest rendition that is set
func (t Thumbnails) Best() string {
	for _, th := range []Thumbnail{t.High, t.Medium, t.Default} {
		if th.URL != "" {
			return th.URL
		}
	}
	return ""
}

// Smallest returns the URL of the smallest rendition that is set
func (t Thumbnails) Smallest() string {
	for _, th := range []Thumbnail{t.Default, t.Medium, t.High} {
		if th.URL != "" {
			return th.URL
		}
	}
	return ""
}

// ItemID identifies a search result
type ItemID struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId,omitempty"`
}

// Snippet carries the descriptive metadata of a search result
type Snippet struct {
	PublishedAt          string     `json:"publishedAt"`
	ChannelID            string     `json:"channelId"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Thumbnails           Thumbnails `json:"thumbnails"`
	ChannelTitle         string     `json:"channelTitle"`
	LiveBroadcastContent string     `json:"liveBroadcastContent"`
	PublishTime          string     `json:"publishTime"`
}

// Item is one entry of a catalog file in the YouTube search-list shape
type Item struct {
	Kind    string  `json:"kind"`
	ETag    string  `json:"etag"`
	ID      ItemID  `json:"id"`
	Snippet Snippet `json:"snippet"`
}

// IsVideo reports whether the item is a playable video
func (i Item) IsVideo() bool {
	return i.ID.Kind == KindVideo && i.ID.VideoID != ""
}

// Ref returns the VideoRef for the item
func (i Item) Ref() VideoRef {
	return VideoRef{
		VideoID:     i.ID.VideoID,
		Title:       i.Snippet.Title,
		Description: i.Snippet.Description,
		Thumbnails:  i.Snippet.Thumbnails,
	}
}

// VideoRef identifies a playable item. Values are treated as immutable.
type VideoRef struct {
	VideoID     string     `json:"videoId" yaml:"video_id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Thumbnails  Thumbnails `json:"thumbnails" yaml:"-"`
}

// URL returns the public watch link for the video
func (v VideoRef) URL() string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", v.VideoID)
}

// Query selects one page of search results. Page is 1-based.
type Query struct {
	Search   string
	Page     int
	PageSize int
}

func (q Query) normalized() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// Page is one page of search results, in the wire shape of the catalog API
type Page struct {
	CurrentPage    int    `json:"currentPage"`
	TotalPages     int    `json:"totalPages"`
	TotalResults   int    `json:"totalResults"`
	ResultsPerPage int    `json:"resultsPerPage"`
	Items          []Item `json:"items"`
}

// Refs returns the page items as VideoRefs
func (p *Page) Refs() []VideoRef {
	refs := make([]VideoRef, 0, len(p.Items))
	for _, item := range p.Items {
		refs = append(refs, item.Ref())
	}
	return refs
}

// Searcher answers catalog queries. Catalog serves them from memory and Client
// from a remote catalog API.
type Searcher interface {
	Search(ctx context.Context, q Query) (*Page, error)
}
