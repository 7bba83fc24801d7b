package manifest

// DefaultContentType is used for extensions not in the table.
const DefaultContentType = "application/octet-stream"

// contentTypes is the static extension → MIME lookup table. A static table
// (rather than the platform mime database) keeps content types identical
// across machines, which keeps upload payloads deterministic.
var contentTypes = map[string]string{
	"html":        "text/html",
	"htm":         "text/html",
	"css":         "text/css",
	"js":          "text/javascript",
	"mjs":         "text/javascript",
	"json":        "application/json",
	"map":         "application/json",
	"webmanifest": "application/manifest+json",
	"xml":         "application/xml",
	"txt":         "text/plain",
	"md":          "text/markdown",
	"csv":         "text/csv",
	"yaml":        "text/yaml",
	"yml":         "text/yaml",
	"svg":         "image/svg+xml",
	"png":         "image/png",
	"jpg":         "image/jpeg",
	"jpeg":        "image/jpeg",
	"gif":         "image/gif",
	"webp":        "image/webp",
	"avif":        "image/avif",
	"ico":         "image/x-icon",
	"bmp":         "image/bmp",
	"woff":        "font/woff",
	"woff2":       "font/woff2",
	"ttf":         "font/ttf",
	"otf":         "font/otf",
	"eot":         "application/vnd.ms-fontobject",
	"mp3":         "audio/mpeg",
	"wav":         "audio/wav",
	"ogg":         "audio/ogg",
	"mp4":         "video/mp4",
	"webm":        "video/webm",
	"pdf":         "application/pdf",
	"wasm":        "application/wasm",
	"gz":          "application/gzip",
	"zip":         "application/zip",
}

// TypeByExt returns the MIME type for an extension (lowercase, no dot).
// Unknown extensions get DefaultContentType.
func TypeByExt(ext string) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return DefaultContentType
}
