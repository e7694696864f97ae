package model

// VideoInfo is the response for a metadata probe, shaped for the format
// picker: qualities sorted best-first with their candidate formats, plus the
// best audio-only formats.
type VideoInfo struct {
	VideoID           string                   `json:"video_id"`
	Title             string                   `json:"title"`
	Thumbnail         string                   `json:"thumbnail"`
	Duration          int64                    `json:"duration"`
	DurationFormatted string                   `json:"duration_formatted"`
	Channel           string                   `json:"channel"`
	ViewCount         int64                    `json:"view_count"`
	Qualities         []string                 `json:"qualities"`
	VideoFormats      map[string]QualityGroup  `json:"video_formats"`
	AudioFormats      []AudioFormat            `json:"audio_formats"`
}

// QualityGroup collects the formats available at one resolution.
type QualityGroup struct {
	Height  int           `json:"height"`
	Formats []VideoFormat `json:"formats"`
}

// VideoFormat describes one downloadable video format.
type VideoFormat struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	VideoCodec string  `json:"vcodec"`
	AudioCodec string  `json:"acodec"`
	FileSize   int64   `json:"filesize"`
	Fps        float64 `json:"fps"`
	Tbr        float64 `json:"tbr"`
}

// AudioFormat describes one audio-only format.
type AudioFormat struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	AudioCodec string  `json:"acodec"`
	Abr        float64 `json:"abr"`
	FileSize   int64   `json:"filesize"`
}
