package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/internal/storage"
)

// YtdlpRunner drives the yt-dlp binary through go-ytdlp.
type YtdlpRunner struct {
	cfg     *model.ToolsConfig
	storage *storage.Manager
}

// NewYtdlpRunner creates a runner writing into the storage staging dir.
func NewYtdlpRunner(cfg *model.ToolsConfig, sm *storage.Manager) *YtdlpRunner {
	return &YtdlpRunner{cfg: cfg, storage: sm}
}

// Run downloads the task's URL into the staging directory with the task id as
// filename prefix and reports the extracted title and duration.
func (r *YtdlpRunner) Run(ctx context.Context, task *model.DownloadTask, progress func(percent int)) (*DownloadOutput, error) {
	dl := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		RestrictFilenames().
		FFmpegLocation(r.cfg.FfmpegDir).
		Output(r.storage.StagingPath(task.ID + "_%(title)s.%(ext)s"))

	if r.cfg.CookiesFile != "" {
		if _, err := os.Stat(r.cfg.CookiesFile); err == nil {
			dl = dl.Cookies(r.cfg.CookiesFile)
		}
	}

	dl = applyFormat(dl, task)

	dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
		if update.TotalBytes > 0 {
			progress(int(float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100))
		}
	})

	result, err := dl.Run(ctx, task.URL)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}

	out := &DownloadOutput{}
	if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 {
		if info[0].Title != nil {
			out.Title = *info[0].Title
		}
		if info[0].Duration != nil {
			out.Duration = time.Duration(*info[0].Duration) * time.Second
		}
	}
	if out.Title == "" {
		out.Title = task.VideoID
	}
	return out, nil
}

// applyFormat maps the requested format type and quality cap onto yt-dlp
// selector and post-processing flags.
func applyFormat(dl *ytdlp.Command, task *model.DownloadTask) *ytdlp.Command {
	heightCap := ""
	if task.Quality != "" && task.Quality != "best" {
		heightCap = "[height<=" + trimQualitySuffix(task.Quality) + "]"
	}

	switch task.FormatType {
	case model.FormatAudioMP3:
		return dl.
			Format("bestaudio/best").
			ExtractAudio().
			AudioFormat("mp3").
			AudioQuality("320K")
	case model.FormatAudioM4A:
		return dl.
			Format("bestaudio[ext=m4a]/bestaudio/best").
			ExtractAudio().
			AudioFormat("m4a").
			AudioQuality("256K")
	case model.FormatVideoOnly:
		selector := "bestvideo/best"
		if heightCap != "" {
			selector = fmt.Sprintf("bestvideo%s/bestvideo/best", heightCap)
		}
		return dl.Format(selector).MergeOutputFormat("mp4")
	default: // video+audio
		selector := "bestvideo+bestaudio/best"
		if heightCap != "" {
			selector = fmt.Sprintf("bestvideo%s+bestaudio/best%s/best", heightCap, heightCap)
		}
		return dl.Format(selector).MergeOutputFormat("mp4")
	}
}

func trimQualitySuffix(quality string) string {
	if len(quality) > 0 && quality[len(quality)-1] == 'p' {
		return quality[:len(quality)-1]
	}
	return quality
}
