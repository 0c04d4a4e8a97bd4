package result

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxNameBytes caps the UTF-8 length of a derived file stem. Filesystems
// limit names to 255 bytes, and atomic writes add a temp prefix and suffix.
const MaxNameBytes = 200

// FileExt is the extension of persisted documents.
const FileExt = ".md"

// DeriveName computes the file stem for a query.
//
// Web queries use the query text itself. PDF queries are URLs, so the last
// path segment is used, falling back to the host and then to the raw query.
// The result is always passed through SanitizeForFilename.
func DeriveName(kind Kind, query string) string {
	query = strings.TrimSpace(query)
	if kind == KindPDF {
		return SanitizeForFilename(lastSegment(query))
	}
	return SanitizeForFilename(query)
}

// FileName returns DeriveName plus the document extension.
func FileName(kind Kind, query string) string {
	return DeriveName(kind, query) + FileExt
}

// lastSegment returns the final non-empty path segment of a URL-shaped string.
func lastSegment(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		// Escaped form so an encoded "/" stays inside its segment.
		path := strings.Trim(u.EscapedPath(), "/")
		if path != "" {
			if seg := path[strings.LastIndex(path, "/")+1:]; seg != "" {
				if unescaped, err := url.PathUnescape(seg); err == nil {
					return unescaped
				}
				return seg
			}
		}
		return u.Host
	}

	// Not a URL with a host: strip query/fragment and split on "/".
	trimmed := raw
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if trimmed == "" {
		return raw
	}
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}

// SanitizeForFilename sanitizes a string for safe use in a filename.
// Removes/replaces characters that could be used for path traversal or injection.
func SanitizeForFilename(s string) string {
	// Replace path separators with dashes
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")

	// Replace ".." sequences (could be embedded)
	s = strings.ReplaceAll(s, "..", "-")

	// Drop control characters and characters Windows rejects in names
	var b strings.Builder
	for _, r := range s {
		if r < 32 || r == 127 || strings.ContainsRune(`<>:"|?*`, r) {
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}

	s = strings.Trim(s, "-. ")

	if len(s) > MaxNameBytes {
		s = strings.TrimRight(truncateBytes(s, MaxNameBytes), "-. ")
	}

	if s == "" {
		s = "unnamed"
	}

	return s
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
