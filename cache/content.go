package cache

import "bytes"

// Content caches the entries of a single archive.
//
// Storing an absent value removes the key instead of recording it: an empty
// string for text, a nil or empty slice for bytes, nil for parsed values.
// Byte slices are copied on the way in and on the way out, so no caller can
// mutate what another caller will read.
type Content struct {
	text   *store[string]
	binary *store[[]byte]
	parsed *store[any]
}

// NewContent returns an empty Content.
func NewContent() *Content {
	return &Content{
		text:   newStore[string](),
		binary: newStore[[]byte](),
		parsed: newStore[any](),
	}
}

// Text returns the cached text for key.
func (c *Content) Text(key string) (string, bool) {
	return c.text.get(key)
}

// SetText caches value under key. An empty value removes key.
func (c *Content) SetText(key, value string) {
	if value == "" {
		c.text.delete(key)
		return
	}
	c.text.set(key, value)
}

// Binary returns a copy of the cached bytes for key.
func (c *Content) Binary(key string) ([]byte, bool) {
	data, ok := c.binary.get(key)
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}

// SetBinary caches a copy of data under key. A nil or empty slice removes key.
func (c *Content) SetBinary(key string, data []byte) {
	if len(data) == 0 {
		c.binary.delete(key)
		return
	}
	c.binary.set(key, bytes.Clone(data))
}

// Parsed returns the parsed value cached for key.
//
// Parsed values are stored as given. Callers that share mutable values
// across workers are responsible for their own synchronization.
func (c *Content) Parsed(key string) (any, bool) {
	return c.parsed.get(key)
}

// SetParsed caches value under key. A nil value removes key.
func (c *Content) SetParsed(key string, value any) {
	if value == nil {
		c.parsed.delete(key)
		return
	}
	c.parsed.set(key, value)
}

// Len returns the number of keys held in each tier.
func (c *Content) Len() (text, binary, parsed int) {
	return c.text.len(), c.binary.len(), c.parsed.len()
}

// Clear drops every cached entry.
func (c *Content) Clear() {
	c.text.clear()
	c.binary.clear()
	c.parsed.clear()
}
