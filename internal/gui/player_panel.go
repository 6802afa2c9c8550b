package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/trimplayer/internal/catalog"
	"github.com/kikiluvv/trimplayer/internal/logging"
	"github.com/kikiluvv/trimplayer/internal/playback"
	"github.com/kikiluvv/trimplayer/internal/trim"
	"github.com/kikiluvv/trimplayer/pkg/util"
)

const textNoSelection = "Select a video to play"

// Controls is the part of the playback controller the panel drives
type Controls interface {
	PlayPause()
	SeekTo(t float64)
	TrimChange(r trim.Range)
	MuteToggle()
}

// PlayerPanel shows the selected video's playback state and forwards user
// intents to the controller. Update must run on the UI goroutine.
type PlayerPanel struct {
	logger   zerolog.Logger
	controls Controls
	copyLink func(string) error

	placeholder *widget.Label
	title       *widget.Label
	status      *widget.Label
	progress    *ProgressControl
	timeLabel   *widget.Label
	playBtn     *widget.Button
	muteBtn     *widget.Button
	copyBtn     *widget.Button
	rangeCtl    *RangeControl
	trimLabel   *widget.Label
	body        *fyne.Container
	content     *fyne.Container

	video *catalog.VideoRef
}

// NewPlayerPanel builds the panel in its empty state
func NewPlayerPanel(logger zerolog.Logger, controls Controls) *PlayerPanel {
	p := &PlayerPanel{
		logger:   logging.Component(logger, "player-panel"),
		controls: controls,
		copyLink: clipboard.WriteAll,
	}
	p.build()
	return p
}

func (p *PlayerPanel) build() {
	p.placeholder = widget.NewLabel(textNoSelection)
	p.placeholder.Alignment = fyne.TextAlignCenter

	p.title = widget.NewLabel("")
	p.title.TextStyle = fyne.TextStyle{Bold: true}
	p.title.Wrapping = fyne.TextWrapWord
	p.status = widget.NewLabel("")
	p.status.Importance = widget.MediumImportance

	p.progress = NewProgressControl(func(seconds float64) {
		p.controls.SeekTo(seconds)
	})
	p.timeLabel = widget.NewLabel(formatTimes(0, 0))

	p.playBtn = widget.NewButtonWithIcon("Play", theme.MediaPlayIcon(), p.controls.PlayPause)
	p.playBtn.Importance = widget.HighImportance
	p.muteBtn = widget.NewButtonWithIcon("Mute", theme.VolumeUpIcon(), p.controls.MuteToggle)
	p.copyBtn = widget.NewButtonWithIcon("Copy link", theme.ContentCopyIcon(), p.copyURL)

	p.rangeCtl = NewRangeControl(0, 0, func(r trim.Range) {
		p.controls.TrimChange(r)
	})
	p.trimLabel = widget.NewLabel("")

	buttons := container.NewHBox(p.playBtn, p.muteBtn, p.copyBtn)
	p.body = container.NewVBox(
		p.title,
		p.status,
		p.progress,
		container.NewBorder(nil, nil, nil, p.timeLabel, buttons),
		widget.NewSeparator(),
		widget.NewLabel("Trim"),
		p.rangeCtl,
		p.trimLabel,
	)
	p.body.Hide()

	p.content = container.NewStack(container.NewCenter(p.placeholder), container.NewPadded(p.body))
}

// Content returns the panel's root object
func (p *PlayerPanel) Content() fyne.CanvasObject {
	return p.content
}

// Update renders a controller snapshot
func (p *PlayerPanel) Update(s playback.State) {
	p.video = s.Video
	if s.Video == nil {
		p.body.Hide()
		p.placeholder.Show()
		return
	}
	p.placeholder.Hide()
	p.body.Show()

	p.title.SetText(s.Video.Title)
	p.status.SetText(statusText(s))

	if !p.progress.Dragging() {
		p.progress.SetValues(s.CurrentTime, s.Duration)
	}
	p.timeLabel.SetText(formatTimes(s.CurrentTime, s.Duration))

	if s.IsPlaying {
		p.playBtn.SetText("Pause")
		p.playBtn.SetIcon(theme.MediaPauseIcon())
	} else {
		p.playBtn.SetText("Play")
		p.playBtn.SetIcon(theme.MediaPlayIcon())
	}
	if s.IsMuted {
		p.muteBtn.SetText("Unmute")
		p.muteBtn.SetIcon(theme.VolumeMuteIcon())
	} else {
		p.muteBtn.SetText("Mute")
		p.muteBtn.SetIcon(theme.VolumeUpIcon())
	}
	if s.IsReady {
		p.playBtn.Enable()
		p.muteBtn.Enable()
	} else {
		p.playBtn.Disable()
		p.muteBtn.Disable()
	}

	p.rangeCtl.SetDomain(0, s.Duration)
	if !p.rangeCtl.Dragging() {
		p.rangeCtl.SetRange(s.Trim)
	}
	lo, hi := s.Bounds()
	p.trimLabel.SetText(fmt.Sprintf("%s - %s", util.FormatClock(lo), util.FormatClock(hi)))
}

func (p *PlayerPanel) copyURL() {
	if p.video == nil {
		return
	}
	url := p.video.URL()
	if err := p.copyLink(url); err != nil {
		p.logger.Warn().Err(err).Msg("copy to clipboard failed")
		p.status.SetText("Could not copy link")
		return
	}
	p.logger.Debug().Str("url", url).Msg("link copied")
	p.status.SetText("Link copied")
}

func statusText(s playback.State) string {
	switch {
	case s.Err != nil:
		return "Player error: " + s.Err.Error()
	case s.Status == playback.StatusLoading:
		return "Loading player..."
	case s.AtTrimEnd:
		return "Reached end of trim"
	default:
		return ""
	}
}

func formatTimes(current, duration float64) string {
	return util.FormatClock(current) + " / " + util.FormatClock(duration)
}
