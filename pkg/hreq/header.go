package hreq

import "strings"

// Entry is a single header. A Bare entry has no value and is written as the
// name alone.
type Entry struct {
	Name  string
	Value string
	Bare  bool
}

// Line renders the entry in wire form without the trailing CRLF.
func (e Entry) Line() string {
	if e.Bare {
		return e.Name
	}
	return e.Name + ": " + e.Value
}

// HeaderSet is an ordered collection of headers with case-insensitive, unique
// names. Setting an existing name replaces its value in place.
type HeaderSet struct {
	entries []Entry
}

// NewHeaderSet returns an empty set.
func NewHeaderSet() *HeaderSet {
	return &HeaderSet{}
}

// DefaultHeaders returns a fresh set holding the headers every new
// configuration starts with.
func DefaultHeaders() *HeaderSet {
	h := NewHeaderSet()
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-us,en;q=0.5")
	h.Set("Accept-Encoding", "deflate")
	h.Set("Accept-Charset", "UTF-8;q=0.7,*;q=0.7")
	return h
}

func (h *HeaderSet) index(name string) int {
	for i, e := range h.entries {
		if strings.EqualFold(e.Name, name) {
			return i
		}
	}
	return -1
}

func (h *HeaderSet) put(e Entry) {
	if i := h.index(e.Name); i >= 0 {
		h.entries[i] = e
		return
	}
	h.entries = append(h.entries, e)
}

// Set stores name with value, overwriting any earlier entry of the same name.
func (h *HeaderSet) Set(name, value string) {
	h.put(Entry{Name: name, Value: value})
}

// SetBare stores name without a value.
func (h *HeaderSet) SetBare(name string) {
	h.put(Entry{Name: name, Bare: true})
}

// Get returns the value for name. ok is false when the name is absent; a bare
// entry returns an empty value with ok true.
func (h *HeaderSet) Get(name string) (value string, ok bool) {
	if i := h.index(name); i >= 0 {
		return h.entries[i].Value, true
	}
	return "", false
}

// Has reports whether name is present.
func (h *HeaderSet) Has(name string) bool {
	return h.index(name) >= 0
}

// IsBare reports whether name is present without a value.
func (h *HeaderSet) IsBare(name string) bool {
	i := h.index(name)
	return i >= 0 && h.entries[i].Bare
}

// Del removes name. Removing an absent name is a no-op.
func (h *HeaderSet) Del(name string) {
	if i := h.index(name); i >= 0 {
		h.entries = append(h.entries[:i], h.entries[i+1:]...)
	}
}

// Len returns the number of entries.
func (h *HeaderSet) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Entries returns a copy of the entries in insertion order.
func (h *HeaderSet) Entries() []Entry {
	if h == nil {
		return nil
	}
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clone returns an independent copy.
func (h *HeaderSet) Clone() *HeaderSet {
	return &HeaderSet{entries: h.Entries()}
}

// Merge copies every entry of other into h, overwriting matching names.
func (h *HeaderSet) Merge(other *HeaderSet) {
	for _, e := range other.Entries() {
		h.put(e)
	}
}

// Lines returns every entry in wire form.
func (h *HeaderSet) Lines() []string {
	lines := make([]string, 0, h.Len())
	for _, e := range h.Entries() {
		lines = append(lines, e.Line())
	}
	return lines
}

// Map returns the entries keyed by name. Bare entries map to an empty string.
func (h *HeaderSet) Map() map[string]string {
	m := make(map[string]string, h.Len())
	for _, e := range h.Entries() {
		m[e.Name] = e.Value
	}
	return m
}

// Reset removes every entry.
func (h *HeaderSet) Reset() {
	h.entries = nil
}
