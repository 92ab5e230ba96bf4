// Package entrypath resolves and validates entry names inside an EPUB archive.
//
// Entry names are slash-separated, relative to the archive root, and never
// carry a leading or trailing slash. References found in package and
// navigation documents follow web-relative URL rules: they may be
// percent-encoded, may carry a "#fragment", and are resolved against the
// directory of the document that contains them.
//
// Two independent defences are provided. [Resolve] clamps ".." at the
// archive root and can never produce a name outside it. [IsPathSafe] rejects
// any candidate that spells a ".." segment at all, in plain or
// percent-encoded form, and is meant to run before an archive is touched.
// Callers that read entries should apply both.
package entrypath
