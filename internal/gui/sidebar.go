package gui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/trimplayer/internal/catalog"
	"github.com/kikiluvv/trimplayer/internal/logging"
	"github.com/kikiluvv/trimplayer/internal/selection"
)

const (
	textLoading  = "Loading..."
	textNoVideos = "No videos found"
	textFailed   = "Could not load videos"
)

// Sidebar lists catalog videos with search and pagination and feeds clicks
// into the selection source. All fields are owned by the UI goroutine.
type Sidebar struct {
	ctx       context.Context
	logger    zerolog.Logger
	searcher  catalog.Searcher
	selection *selection.Source
	thumbs    *ThumbnailLoader
	debounce  *debouncer
	pageSize  int

	search    *widget.Entry
	list      *widget.List
	status    *widget.Label
	prevBtn   *widget.Button
	nextBtn   *widget.Button
	pageLabel *widget.Label
	content   fyne.CanvasObject

	query string
	page  int
	items []catalog.VideoRef
	total int
	seq   uint64
}

// NewSidebar builds the sidebar. Call Reload to fetch the first page.
func NewSidebar(ctx context.Context, logger zerolog.Logger, searcher catalog.Searcher, sel *selection.Source, thumbs *ThumbnailLoader, pageSize int, debounce time.Duration) *Sidebar {
	s := &Sidebar{
		ctx:       ctx,
		logger:    logging.Component(logger, "sidebar"),
		searcher:  searcher,
		selection: sel,
		thumbs:    thumbs,
		debounce:  newDebouncer(debounce),
		pageSize:  pageSize,
		page:      1,
	}
	s.build()
	return s
}

func (s *Sidebar) build() {
	s.search = widget.NewEntry()
	s.search.SetPlaceHolder("Search videos")
	s.search.OnChanged = func(text string) {
		s.debounce.Trigger(func() {
			fyne.Do(func() { s.setQuery(text) })
		})
	}

	s.list = widget.NewList(
		func() int { return len(s.items) },
		func() fyne.CanvasObject { return newVideoCard() },
		func(id widget.ListItemID, obj fyne.CanvasObject) { s.updateCard(id, obj) },
	)
	s.list.OnSelected = func(id widget.ListItemID) {
		s.list.Unselect(id)
		if id < 0 || id >= len(s.items) {
			return
		}
		s.selection.Set(s.items[id])
	}

	s.status = widget.NewLabel(textLoading)
	s.status.Alignment = fyne.TextAlignCenter

	s.prevBtn = widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() { s.goToPage(s.page - 1) })
	s.nextBtn = widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() { s.goToPage(s.page + 1) })
	s.prevBtn.Importance = widget.LowImportance
	s.nextBtn.Importance = widget.LowImportance
	s.pageLabel = widget.NewLabel("")
	s.pageLabel.Alignment = fyne.TextAlignCenter

	pager := container.NewBorder(nil, nil, s.prevBtn, s.nextBtn, s.pageLabel)
	center := container.NewStack(s.list, container.NewCenter(s.status))

	s.content = container.NewBorder(s.search, pager, nil, nil, center)
	s.updatePager()
}

// Content returns the sidebar's root object
func (s *Sidebar) Content() fyne.CanvasObject {
	return s.content
}

// Reload fetches the current page again
func (s *Sidebar) Reload() {
	s.load()
}

// Refresh redraws the cards, e.g. after the selection changed
func (s *Sidebar) Refresh() {
	s.list.Refresh()
}

// Stop cancels a pending debounced search
func (s *Sidebar) Stop() {
	s.debounce.Stop()
}

func (s *Sidebar) setQuery(text string) {
	text = strings.TrimSpace(text)
	if text == s.query && s.page == 1 {
		return
	}
	s.query = text
	s.page = 1
	s.load()
}

func (s *Sidebar) goToPage(page int) {
	if page < 1 || (s.total > 0 && page > s.total) {
		return
	}
	s.page = page
	s.load()
}

// load fetches the current query and page off the UI goroutine. Only the
// newest request is applied.
func (s *Sidebar) load() {
	s.seq++
	seq := s.seq
	q := catalog.Query{Search: s.query, Page: s.page, PageSize: s.pageSize}

	s.showStatus(textLoading)
	s.prevBtn.Disable()
	s.nextBtn.Disable()

	go func() {
		page, err := s.searcher.Search(s.ctx, q)
		fyne.Do(func() { s.apply(seq, page, err) })
	}()
}

// apply installs a fetched page unless a newer request superseded it
func (s *Sidebar) apply(seq uint64, page *catalog.Page, err error) {
	if seq != s.seq {
		return
	}

	if err != nil {
		s.logger.Error().Err(err).Str("search", s.query).Int("page", s.page).Msg("failed to load videos")
		s.items = nil
		s.showStatus(textFailed)
		s.updatePager()
		s.list.Refresh()
		return
	}

	s.items = page.Refs()
	s.total = page.TotalPages
	if page.CurrentPage > 0 {
		s.page = page.CurrentPage
	}

	if len(s.items) == 0 {
		s.showStatus(textNoVideos)
	} else {
		s.status.Hide()
	}
	s.updatePager()
	s.list.Refresh()
	s.list.ScrollToTop()
}

func (s *Sidebar) showStatus(text string) {
	s.status.SetText(text)
	s.status.Show()
}

func (s *Sidebar) updatePager() {
	total := s.total
	if total < 1 {
		total = 1
	}
	s.pageLabel.SetText(fmt.Sprintf("Page %d of %d", min(s.page, total), total))

	if s.page > 1 {
		s.prevBtn.Enable()
	} else {
		s.prevBtn.Disable()
	}
	if s.page < s.total {
		s.nextBtn.Enable()
	} else {
		s.nextBtn.Disable()
	}
}

func (s *Sidebar) updateCard(id widget.ListItemID, obj fyne.CanvasObject) {
	card, ok := obj.(*videoCard)
	if !ok || id < 0 || id >= len(s.items) {
		return
	}
	v := s.items[id]
	url := v.Thumbnails.Smallest()

	var img image.Image
	if s.thumbs != nil {
		if cached, ok := s.thumbs.Cached(url); ok {
			img = cached
		} else {
			s.thumbs.Request(s.ctx, url, func() {
				fyne.Do(s.list.Refresh)
			})
		}
	}

	card.set(v, img, s.selection.IsSelected(v.VideoID))
}

// videoCard is one sidebar row: thumbnail, title and description
type videoCard struct {
	widget.BaseWidget

	bg    *canvas.Rectangle
	thumb *canvas.Image
	title *widget.Label
	desc  *widget.Label

	content fyne.CanvasObject
}

func newVideoCard() *videoCard {
	c := &videoCard{
		bg:    canvas.NewRectangle(color.Transparent),
		thumb: canvas.NewImageFromResource(theme.MediaVideoIcon()),
		title: widget.NewLabel(""),
		desc:  widget.NewLabel(""),
	}
	c.bg.CornerRadius = theme.InputRadiusSize()
	c.thumb.FillMode = canvas.ImageFillContain
	c.thumb.SetMinSize(fyne.NewSize(thumbWidth, thumbHeight))
	c.title.TextStyle = fyne.TextStyle{Bold: true}
	c.title.Truncation = fyne.TextTruncateEllipsis
	c.desc.Truncation = fyne.TextTruncateEllipsis

	text := container.NewVBox(c.title, c.desc)
	c.content = container.NewStack(c.bg, container.NewBorder(nil, nil, c.thumb, nil, text))

	c.ExtendBaseWidget(c)
	return c
}

func (c *videoCard) set(v catalog.VideoRef, img image.Image, selected bool) {
	c.title.SetText(v.Title)
	c.desc.SetText(v.Description)

	if img != nil {
		c.thumb.Resource = nil
		c.thumb.Image = img
	} else {
		c.thumb.Image = nil
		c.thumb.Resource = theme.MediaVideoIcon()
	}
	c.thumb.Refresh()

	if selected {
		c.bg.FillColor = theme.Color(theme.ColorNameSelection)
	} else {
		c.bg.FillColor = color.Transparent
	}
	c.bg.Refresh()
}

func (c *videoCard) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.content)
}
