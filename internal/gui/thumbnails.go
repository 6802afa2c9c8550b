package gui

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/trimplayer/internal/logging"
)

// Thumbnail box used by the sidebar cards
const (
	thumbWidth  = 96
	thumbHeight = 54
)

// ThumbnailLoader fetches and scales thumbnails with a bounded number of
// concurrent downloads. Results and failures are cached per URL.
type ThumbnailLoader struct {
	logger zerolog.Logger
	client *http.Client
	width  uint
	height uint
	sem    chan struct{}

	mu      sync.Mutex
	cache   map[string]image.Image
	pending map[string]bool
	failed  map[string]bool
}

// NewThumbnailLoader creates a loader running at most workers downloads at once
func NewThumbnailLoader(logger zerolog.Logger, client *http.Client, workers int) *ThumbnailLoader {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if workers <= 0 {
		workers = 1
	}
	return &ThumbnailLoader{
		logger:  logging.Component(logger, "thumbnails"),
		client:  client,
		width:   thumbWidth * 2,
		height:  thumbHeight * 2,
		sem:     make(chan struct{}, workers),
		cache:   make(map[string]image.Image),
		pending: make(map[string]bool),
		failed:  make(map[string]bool),
	}
}

// Cached returns a previously loaded thumbnail
func (l *ThumbnailLoader) Cached(url string) (image.Image, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	img, ok := l.cache[url]
	return img, ok
}

// Request starts loading url in the background unless it is cached, in flight
// or known to fail. done runs on the loader goroutine after a successful load.
func (l *ThumbnailLoader) Request(ctx context.Context, url string, done func()) {
	if url == "" {
		return
	}

	l.mu.Lock()
	if _, ok := l.cache[url]; ok || l.pending[url] || l.failed[url] {
		l.mu.Unlock()
		return
	}
	l.pending[url] = true
	l.mu.Unlock()

	go func() {
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			l.finish(url, nil, ctx.Err())
			return
		}
		img, err := l.fetch(ctx, url)
		<-l.sem

		l.finish(url, img, err)
		if err == nil && done != nil {
			done()
		}
	}()
}

func (l *ThumbnailLoader) finish(url string, img image.Image, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.pending, url)
	if err != nil {
		// a cancelled request may be retried later
		if !errors.Is(err, context.Canceled) {
			l.failed[url] = true
		}
		l.logger.Debug().Err(err).Str("url", url).Msg("thumbnail unavailable")
		return
	}
	l.cache[url] = img
}

func (l *ThumbnailLoader) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("thumbnail status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode thumbnail: %w", err)
	}

	return resize.Thumbnail(l.width, l.height, img, resize.Bilinear), nil
}
