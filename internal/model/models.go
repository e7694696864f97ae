package model

import "time"

// TaskStatus is the lifecycle state of a download task.
type TaskStatus string

const (
	StatusQueued      TaskStatus = "queued"
	StatusDownloading TaskStatus = "downloading"
	StatusConverting  TaskStatus = "converting"
	StatusReady       TaskStatus = "ready"
	StatusError       TaskStatus = "error"
)

// IsFinished reports whether the task reached a terminal state.
func (s TaskStatus) IsFinished() bool {
	return s == StatusReady || s == StatusError
}

// FormatType selects what yt-dlp should produce.
type FormatType string

const (
	FormatVideoAudio FormatType = "video+audio"
	FormatVideoOnly  FormatType = "video"
	FormatAudioMP3   FormatType = "audio_mp3"
	FormatAudioM4A   FormatType = "audio_m4a"
)

// Valid reports whether ft is one of the supported format types.
func (ft FormatType) Valid() bool {
	switch ft {
	case FormatVideoAudio, FormatVideoOnly, FormatAudioMP3, FormatAudioM4A:
		return true
	}
	return false
}

// DownloadTask tracks one in-flight or finished download.
type DownloadTask struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	VideoID    string     `json:"video_id"`
	Quality    string     `json:"quality"`
	FormatType FormatType `json:"format_type"`
	Status     TaskStatus `json:"status"`
	Progress   int        `json:"progress"`
	Title      string     `json:"title,omitempty"`
	Filename   string     `json:"filename,omitempty"`
	FilePath   string     `json:"-"`
	Size       int64      `json:"-"`
	ExpiresAt  int64      `json:"expiry,omitempty"`
	Error      string     `json:"error,omitempty"`
	ClientIP   string     `json:"-"`
	CreatedAt  time.Time  `json:"-"`
}

// DownloadRecord is a persisted, finished download tracked for cleanup.
type DownloadRecord struct {
	ID         string
	VideoID    string
	Title      string
	FilePath   string
	DurationS  int64
	ExpiryUnix int64
	FormatInfo string
	Status     string
	CreatedAt  int64
}

// DownloadRequest represents a user's download request
type DownloadRequest struct {
	URL        string `json:"url" binding:"required"`
	Quality    string `json:"quality"`
	FormatType string `json:"format_type"`
}

// DownloadResponse is returned when a task has been accepted.
type DownloadResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatusResponse answers status polls.
type TaskStatusResponse struct {
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`
	Title    string     `json:"title,omitempty"`
	Filename string     `json:"filename,omitempty"`
	Expiry   int64      `json:"expiry,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
