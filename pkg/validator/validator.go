package validator

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/v/|youtu\.be/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:embed/)([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:shorts/)([a-zA-Z0-9_-]{11})`),
}

var unsafeTitleChars = regexp.MustCompile(`[^\w\s-]`)

// ValidateURL validates if the URL belongs to one of the allowed domains.
func ValidateURL(videoURL string, allowedDomains []string) bool {
	u, err := url.Parse(videoURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	for _, domain := range allowedDomains {
		cleanDomain := strings.ToLower(strings.TrimSpace(domain))
		if len(cleanDomain) == 0 {
			continue
		}
		if host == cleanDomain || strings.HasSuffix(host, "."+cleanDomain) {
			return true
		}
	}

	return false
}

// ExtractVideoID pulls the 11-character video ID out of the common YouTube
// URL shapes (watch, youtu.be, embed, shorts). Returns "" when none match.
func ExtractVideoID(videoURL string) string {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(videoURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// CleanYouTubeURL canonicalizes a video URL to a bare watch URL, dropping
// playlist and tracking parameters. Unrecognized URLs pass through unchanged.
func CleanYouTubeURL(videoURL string) string {
	if id := ExtractVideoID(videoURL); id != "" {
		return "https://www.youtube.com/watch?v=" + id
	}
	return videoURL
}

// SafeTitle strips characters unsafe for filenames and caps the title at
// maxRunes runes.
func SafeTitle(title string, maxRunes int) string {
	cleaned := unsafeTitleChars.ReplaceAllString(title, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "video"
	}
	runes := []rune(cleaned)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes])
	}
	return cleaned
}

// TruncateFilename truncates filename to max length while preserving extension
// Uses rune-level truncation to properly handle UTF-8 multi-byte characters
func TruncateFilename(filename string, maxLen int) string {
	runes := []rune(filename)
	if len(runes) <= maxLen {
		return filename
	}

	lastDot := strings.LastIndex(filename, ".")
	if lastDot == -1 {
		return string(runes[:maxLen])
	}

	ext := filename[lastDot:]
	extRunes := []rune(ext)

	availableLen := maxLen - len(extRunes)
	if availableLen <= 0 {
		return string(runes[:maxLen])
	}

	baseName := string(runes[:availableLen])
	return baseName + ext
}
