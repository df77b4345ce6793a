package hreq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderSet(t *testing.T) {
	t.Parallel()

	t.Run("set_overwrites_in_place", func(t *testing.T) {
		t.Parallel()
		h := NewHeaderSet()
		h.Set("A", "1")
		h.Set("B", "2")
		h.Set("a", "3")

		require.Equal(t, 2, h.Len())
		assert.Equal(t, []string{"a: 3", "B: 2"}, h.Lines())
	})

	t.Run("case_insensitive_lookup", func(t *testing.T) {
		t.Parallel()
		h := NewHeaderSet()
		h.Set("Content-Type", "text/plain")

		v, ok := h.Get("content-type")
		assert.True(t, ok)
		assert.Equal(t, "text/plain", v)
		assert.True(t, h.Has("CONTENT-TYPE"))
	})

	t.Run("bare_entries", func(t *testing.T) {
		t.Parallel()
		h := NewHeaderSet()
		h.SetBare("X-Flag")

		v, ok := h.Get("X-Flag")
		assert.True(t, ok)
		assert.Empty(t, v)
		assert.True(t, h.IsBare("x-flag"))
		assert.Equal(t, []string{"X-Flag"}, h.Lines())

		h.Set("X-Flag", "on")
		assert.False(t, h.IsBare("X-Flag"))
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		h := NewHeaderSet()
		h.Set("A", "1")
		h.Set("B", "2")
		h.Del("a")
		h.Del("missing")

		assert.False(t, h.Has("A"))
		assert.Equal(t, 1, h.Len())
	})

	t.Run("clone_is_independent", func(t *testing.T) {
		t.Parallel()
		h := NewHeaderSet()
		h.Set("A", "1")
		c := h.Clone()
		c.Set("A", "2")
		c.Set("B", "3")

		v, _ := h.Get("A")
		assert.Equal(t, "1", v)
		assert.Equal(t, 1, h.Len())
	})

	t.Run("entries_returns_copy", func(t *testing.T) {
		t.Parallel()
		h := NewHeaderSet()
		h.Set("A", "1")
		entries := h.Entries()
		entries[0].Value = "changed"

		v, _ := h.Get("A")
		assert.Equal(t, "1", v)
	})

	t.Run("merge_replaces_by_name", func(t *testing.T) {
		t.Parallel()
		base := NewHeaderSet()
		base.Set("User-Agent", "hreq/1.0")
		base.Set("Connection", "close")
		over := NewHeaderSet()
		over.Set("user-agent", "custom")
		over.SetBare("X-Bare")

		base.Merge(over)
		assert.Equal(t, []string{"user-agent: custom", "Connection: close", "X-Bare"}, base.Lines())
	})

	t.Run("reset", func(t *testing.T) {
		t.Parallel()
		h := DefaultHeaders()
		h.Reset()
		assert.Zero(t, h.Len())
	})
}

func TestDefaultHeaders(t *testing.T) {
	t.Parallel()

	h := DefaultHeaders()
	assert.Equal(t, []string{
		"Accept: text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language: en-us,en;q=0.5",
		"Accept-Encoding: deflate",
		"Accept-Charset: UTF-8;q=0.7,*;q=0.7",
	}, h.Lines())

	h.Set("Accept", "application/json")
	fresh := DefaultHeaders()
	v, _ := fresh.Get("Accept")
	assert.NotEqual(t, "application/json", v, "each call returns a fresh set")
}
