package disk

import (
	"strings"

	"github.com/google/uuid"
)

// ReservedFolderName is the system directory inside a user's root that
// holds avatar images. It never appears as a Folder record and cannot
// be created by users.
const ReservedFolderName = "avatars"

// allowedExtensions mirrors the upload allowlist of common formats.
// Files without an extension are always accepted.
var allowedExtensions = map[string]struct{}{}

func init() {
	list := []string{
		// text
		"txt", "md", "log", "csv", "json", "xml", "html", "htm", "css", "js", "jsx", "ts", "tsx",
		"py", "java", "cpp", "c", "h", "hpp", "cs", "php", "rb", "go", "rs", "swift", "kt",
		"sh", "bat", "cmd", "ps1", "yml", "yaml", "ini", "cfg", "conf", "properties",
		// images
		"jpg", "jpeg", "png", "gif", "bmp", "webp", "svg", "ico", "tiff", "tif", "heic", "heif",
		// video
		"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm", "m4v", "3gp", "mpg", "mpeg", "rm", "rmvb",
		// audio
		"mp3", "wav", "flac", "aac", "ogg", "m4a", "wma", "opus", "amr",
		// documents
		"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "odt", "ods", "odp", "rtf",
		// archives
		"zip", "rar", "7z", "tar", "gz", "bz2", "xz", "z", "cab", "iso",
		// executables
		"apk", "exe", "dmg", "pkg", "deb", "rpm", "msi",
		// other
		"bin", "dat", "db", "sqlite", "sqlite3", "mdb", "accdb",
	}
	for _, ext := range list {
		allowedExtensions[ext] = struct{}{}
	}
}

// ExtractExtension returns the lower-cased extension of a display name
// without the dot, stripped of anything but alphanumerics, '-' and '_'.
func ExtractExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	ext := strings.ToLower(name[idx+1:])
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtensionAllowed reports whether a display name may be uploaded.
func ExtensionAllowed(name string) bool {
	ext := ExtractExtension(name)
	if ext == "" {
		return true
	}
	_, ok := allowedExtensions[ext]
	return ok
}

// NewStoredName generates a collision-free on-disk name carrying the
// given extension ("" for none).
func NewStoredName(ext string) string {
	base := strings.ReplaceAll(uuid.New().String(), "-", "")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// swapExtension keeps the random base of a stored name and replaces its
// extension ("" removes it).
func swapExtension(storedName, ext string) string {
	base := storedName
	if idx := strings.LastIndex(storedName, "."); idx >= 0 {
		base = storedName[:idx]
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}
