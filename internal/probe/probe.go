// Package probe fetches video metadata by running yt-dlp in dump-json mode
// and reshapes the raw format list for the quality picker.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/internal/retention"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec, returning stderr in the error.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return outBuf.Bytes(), fmt.Errorf("%s canceled: %v", name, ctx.Err())
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return outBuf.Bytes(), fmt.Errorf("%s failed (exit code %d): %s",
				name, ee.ExitCode(), strings.TrimSpace(errBuf.String()))
		}
		return outBuf.Bytes(), fmt.Errorf("%s failed: %v", name, err)
	}
	return outBuf.Bytes(), nil
}

// Prober fetches and parses video metadata.
type Prober struct {
	cfg     *model.ToolsConfig
	runner  Runner
	timeout time.Duration
}

// New creates a Prober using the real exec runner.
func New(cfg *model.ToolsConfig, timeout time.Duration) *Prober {
	return &Prober{cfg: cfg, runner: ExecRunner{}, timeout: timeout}
}

// NewWithRunner creates a Prober with a custom command runner.
func NewWithRunner(cfg *model.ToolsConfig, timeout time.Duration, r Runner) *Prober {
	return &Prober{cfg: cfg, runner: r, timeout: timeout}
}

// rawInfo mirrors the subset of yt-dlp's info JSON the service needs.
type rawInfo struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Thumbnail string      `json:"thumbnail"`
	Duration  float64     `json:"duration"`
	Channel   string      `json:"channel"`
	Uploader  string      `json:"uploader"`
	ViewCount int64       `json:"view_count"`
	Formats   []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	Vcodec         string  `json:"vcodec"`
	Acodec         string  `json:"acodec"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	Fps            float64 `json:"fps"`
	Tbr            float64 `json:"tbr"`
	Abr            float64 `json:"abr"`
}

// Fetch probes the URL and returns grouped format information.
func (p *Prober) Fetch(ctx context.Context, videoURL string) (*model.VideoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-J",
		"--no-playlist",
		"--no-warnings",
		"--ffmpeg-location", p.cfg.FfmpegDir,
	}
	if p.cfg.CookiesFile != "" {
		if _, err := os.Stat(p.cfg.CookiesFile); err == nil {
			args = append(args, "--cookies", p.cfg.CookiesFile)
		}
	}
	args = append(args, videoURL)

	out, err := p.runner.Run(ctx, p.cfg.YtdlpPath, args...)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", videoURL, err)
	}

	var info rawInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	return shape(&info), nil
}

// shape groups formats by resolution and picks the best audio-only formats.
func shape(info *rawInfo) *model.VideoInfo {
	videoFormats := make(map[string]model.QualityGroup)
	var audioFormats []model.AudioFormat

	for _, f := range info.Formats {
		if f.FormatID == "" {
			continue
		}

		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}

		hasVideo := f.Vcodec != "" && f.Vcodec != "none"
		hasAudio := f.Acodec != "" && f.Acodec != "none"

		switch {
		case f.Height > 0 && hasVideo:
			label := fmt.Sprintf("%dp", f.Height)
			group := videoFormats[label]
			group.Height = f.Height
			fps := f.Fps
			if fps == 0 {
				fps = 30
			}
			group.Formats = append(group.Formats, model.VideoFormat{
				FormatID:   f.FormatID,
				Ext:        f.Ext,
				VideoCodec: f.Vcodec,
				AudioCodec: f.Acodec,
				FileSize:   size,
				Fps:        fps,
				Tbr:        f.Tbr,
			})
			videoFormats[label] = group
		case hasAudio && !hasVideo:
			audioFormats = append(audioFormats, model.AudioFormat{
				FormatID:   f.FormatID,
				Ext:        f.Ext,
				AudioCodec: f.Acodec,
				Abr:        f.Abr,
				FileSize:   size,
			})
		}
	}

	qualities := make([]string, 0, len(videoFormats))
	for label := range videoFormats {
		qualities = append(qualities, label)
	}
	sort.Slice(qualities, func(i, j int) bool {
		return qualityHeight(qualities[i]) > qualityHeight(qualities[j])
	})

	sort.Slice(audioFormats, func(i, j int) bool {
		return audioFormats[i].Abr > audioFormats[j].Abr
	})
	if len(audioFormats) > 5 {
		audioFormats = audioFormats[:5]
	}

	channel := info.Channel
	if channel == "" {
		channel = info.Uploader
	}

	duration := time.Duration(info.Duration) * time.Second

	return &model.VideoInfo{
		VideoID:           info.ID,
		Title:             info.Title,
		Thumbnail:         info.Thumbnail,
		Duration:          int64(info.Duration),
		DurationFormatted: retention.FormatDuration(duration),
		Channel:           channel,
		ViewCount:         info.ViewCount,
		Qualities:         qualities,
		VideoFormats:      videoFormats,
		AudioFormats:      audioFormats,
	}
}

func qualityHeight(label string) int {
	h, _ := strconv.Atoi(strings.TrimSuffix(label, "p"))
	return h
}
