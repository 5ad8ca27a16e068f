// Package mediatype maps output file names to the Content-Type sent back to the client.
package mediatype

import (
	"path/filepath"
	"strings"
)

// Fallback is used for extensions missing from MimeTypes.
const Fallback = "application/octet-stream"

// MimeTypes maps lowercase file extensions (with the leading dot) to MIME types.
var MimeTypes = map[string]string{
	// Videos
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".ogv":  "video/ogg",

	// Audio
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wma":  "audio/x-ms-wma",
	".aiff": "audio/aiff",
	".amr":  "audio/amr",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".avif": "image/avif",

	// Streaming manifests and subtitles
	".m3u8": "application/vnd.apple.mpegurl",
	".mpd":  "application/dash+xml",
	".srt":  "application/x-subrip",
	".vtt":  "text/vtt",
	".ass":  "text/x-ssa",

	".bin": Fallback,
}

// formatExtensions maps ffmpeg muxer names (the value of "-f") to a file extension.
var formatExtensions = map[string]string{
	"mp4":       ".mp4",
	"mov":       ".mov",
	"matroska":  ".mkv",
	"webm":      ".webm",
	"avi":       ".avi",
	"flv":       ".flv",
	"mpegts":    ".ts",
	"mpeg":      ".mpg",
	"ogg":       ".ogg",
	"mp3":       ".mp3",
	"wav":       ".wav",
	"flac":      ".flac",
	"adts":      ".aac",
	"ipod":      ".m4a",
	"opus":      ".opus",
	"gif":       ".gif",
	"image2":    ".png",
	"apng":      ".png",
	"webp":      ".webp",
	"hls":       ".m3u8",
	"dash":      ".mpd",
	"srt":       ".srt",
	"webvtt":    ".vtt",
	"3gp":       ".3gp",
	"mjpeg":     ".jpg",
}

// ForName returns the MIME type for name's extension, or Fallback.
func ForName(name string) string {
	if t, ok := MimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return Fallback
}

// ExtensionForFormat returns the extension ffmpeg conventionally uses for a muxer name.
func ExtensionForFormat(format string) (string, bool) {
	ext, ok := formatExtensions[strings.ToLower(format)]
	return ext, ok
}

// ExtensionForType returns an extension whose MIME type equals contentType.
// Parameters such as "; charset=..." are ignored. The generic Fallback type never matches.
func ExtensionForType(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == Fallback {
		return "", false
	}

	// Map iteration order is random; pick the shortest, then lexically smallest,
	// extension so the answer is stable (".mpg" vs ".mpeg", ".jpg" vs ".jpeg").
	best := ""
	for ext, t := range MimeTypes {
		if t != ct {
			continue
		}
		if best == "" || len(ext) < len(best) || (len(ext) == len(best) && ext < best) {
			best = ext
		}
	}
	return best, best != ""
}
