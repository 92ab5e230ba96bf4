package entrypath

import "strings"

// maxDecodeRounds bounds how many layers of percent-encoding IsPathSafe
// peels off ("%252E" is "%2E" is ".").
const maxDecodeRounds = 4

// encodedTraversal maps the lower-cased escapes that can spell a dot or a
// separator to their decoded form.
var encodedTraversal = strings.NewReplacer(
	"%2e", ".",
	"%2f", "/",
	"%5c", `\`,
)

// IsPathSafe reports whether candidate can be used as an entry name relative
// to base without escaping the archive root.
//
// A path is unsafe when it contains ".." as a segment, separated by "/" or
// "\", either literally or after percent-decoding ("%2E%2E", "..%2F",
// "%252e%252e"). A NUL byte also makes a path unsafe. The empty string and
// "." denote the root and are safe.
//
// IsPathSafe is deliberately stricter than [Resolve]: a reference such as
// "a/../b" stays inside the archive once resolved but is still rejected here.
func IsPathSafe(base, candidate string) bool {
	return isSafe(base) && isSafe(candidate)
}

func isSafe(p string) bool {
	if p == "" || p == "." {
		return true
	}
	if strings.IndexByte(p, 0) >= 0 {
		return false
	}

	current := p
	for range maxDecodeRounds {
		if hasParentSegment(current) || strings.Contains(current, "%00") {
			return false
		}
		if !strings.Contains(current, "%") {
			return true
		}
		next := encodedTraversal.Replace(strings.ReplaceAll(strings.ToLower(current), "%25", "%"))
		if next == current {
			return true
		}
		current = next
	}
	return !hasParentSegment(current)
}

// hasParentSegment reports whether p has a ".." segment under either
// separator convention.
func hasParentSegment(p string) bool {
	for seg := range strings.FieldsFuncSeq(p, isSeparator) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// SanitizePath trims surrounding whitespace and all leading and trailing
// slashes from path. Blank input yields "". Interior structure, including
// "." and ".." segments, is left alone; use [IsPathSafe] to reject those.
//
//	SanitizePath("  /OEBPS/text/ ") // "OEBPS/text"
//	SanitizePath("///")             // ""
//
// SanitizePath is idempotent.
func SanitizePath(path string) string {
	for {
		trimmed := strings.Trim(strings.TrimSpace(path), "/")
		if trimmed == path {
			return trimmed
		}
		path = trimmed
	}
}
