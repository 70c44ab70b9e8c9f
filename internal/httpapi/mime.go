package httpapi

import "strings"

// mimeTable maps a lowercased file extension to its content type, ported
// from original_source/api.rs::mime_for.
var mimeTable = map[string]string{
	"jpg": "image/jpeg", "jpeg": "image/jpeg", "png": "image/png",
	"gif": "image/gif", "webp": "image/webp", "bmp": "image/bmp", "svg": "image/svg+xml",
	"mp4": "video/mp4", "webm": "video/webm", "mov": "video/quicktime", "mkv": "video/x-matroska", "avi": "video/x-msvideo",
	"mp3": "audio/mpeg", "wav": "audio/wav", "ogg": "audio/ogg", "flac": "audio/flac", "m4a": "audio/mp4",
	"pdf":  "application/pdf",
	"txt":  "text/plain", "md": "text/markdown", "csv": "text/csv",
	"html": "text/html", "htm": "text/html", "css": "text/css", "js": "application/javascript", "json": "application/json",
}

// fileCategoryTable groups a mime prefix into a coarse category, ported
// from original_source/api.rs::file_category.
func fileCategory(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	case mime == "application/pdf":
		return "document"
	case strings.HasPrefix(mime, "text/") || mime == "application/json" || mime == "application/javascript":
		return "text"
	default:
		return "other"
	}
}

// mimeFor resolves filename's extension to a content type, defaulting to
// application/octet-stream for anything not in the table.
func mimeFor(filename string) string {
	ext := ""
	if i := strings.LastIndexByte(filename, '.'); i != -1 {
		ext = strings.ToLower(filename[i+1:])
	}
	if mime, ok := mimeTable[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
