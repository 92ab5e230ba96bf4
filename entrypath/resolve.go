package entrypath

import (
	"net/url"
	"strings"
)

// Split separates a reference into its path and fragment at the first "#".
// The fragment is empty when the reference has none.
func Split(reference string) (path, fragment string) {
	path, fragment, _ = strings.Cut(reference, "#")
	return path, fragment
}

// Hash returns the fragment of reference: the text after the first "#".
// It returns "" when there is no fragment.
func Hash(reference string) string {
	_, fragment := Split(reference)
	return fragment
}

// Resolve resolves reference against base and returns the archive entry name.
//
// base names a directory (the directory of the referencing document, without
// its file name); "", "." and "/" all denote the archive root. A reference
// starting with "/" is resolved from the root and base is ignored. The
// fragment and any query are dropped, both inputs are percent-decoded, "."
// segments are removed and ".." removes the preceding segment. A ".." with
// nothing left to remove is absorbed at the root.
//
//	Resolve("OEBPS", "./text/ch1.xhtml#p3") // "OEBPS/text/ch1.xhtml"
//	Resolve("OEBPS/text", "../../cover.jpg") // "cover.jpg"
//	Resolve("OEBPS", "/META-INF/container.xml") // "META-INF/container.xml"
func Resolve(base, reference string) string {
	ref, _ := Split(reference)
	ref, _, _ = strings.Cut(ref, "?")
	ref = unescape(ref)

	var segs []string
	if !strings.HasPrefix(ref, "/") {
		segs = appendSegments(segs, unescape(base))
	}
	segs = appendSegments(segs, ref)
	return strings.Join(segs, "/")
}

// Parent returns the directory part of an entry name, or "" for an entry at
// the archive root. The name is normalised first, so a trailing slash is
// dropped and "a/" names the entry "a" at the root.
//
//	Parent("/OEBPS/content.opf") // "OEBPS"
//	Parent("content.opf")        // ""
func Parent(path string) string {
	resolved := Resolve("", path)
	if i := strings.LastIndex(resolved, "/"); i > 0 {
		return resolved[:i]
	}
	return ""
}

// appendSegments applies the segments of p to stack using URL dot-segment
// rules. Empty segments are dropped so that "a//b" addresses "a/b".
func appendSegments(stack []string, p string) []string {
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return stack
}

// unescape percent-decodes p. Malformed escapes leave p unchanged; ZIP entry
// names may legitimately contain a bare "%".
func unescape(p string) string {
	if !strings.Contains(p, "%") {
		return p
	}
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return decoded
}
