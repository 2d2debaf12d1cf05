package player

import (
	"regexp"
	"strings"
)

var (
	audioExtPattern     = regexp.MustCompile(`(?i)\.(mp3|mpeg|wav|ogg|m4a)$`)
	unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// DownloadFilename builds "{artist} - {title}.mp3" for a track.
func DownloadFilename(t Track) string {
	title := audioExtPattern.ReplaceAllString(t.Title, "")
	title = strings.ReplaceAll(title, "_", " ")
	artist := strings.ReplaceAll(t.Artist, "_", " ")
	return unsafeFilenameChars.ReplaceAllString(artist+" - "+title+".mp3", "")
}
