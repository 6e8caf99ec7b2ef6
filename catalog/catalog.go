/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package catalog holds the secret entry lists ("variants") a player can
// guess against, along with the normalized lookup index used for matching.
package catalog

import (
	"time"
)

// Entry is a single secret: the name to be guessed and the description
// revealed once it is found. Its identity is its position in the Catalog.
type Entry struct {
	Name   string `yaml:"name" json:"name"`
	Secret string `yaml:"secret" json:"secret"`
}

// Index maps a normalized key to every catalog position sharing it, in
// catalog order.
type Index map[string][]int

// BuildIndex normalizes every entry name and groups positions under it.
func BuildIndex(entries []Entry) Index {
	idx := make(Index, len(entries))
	for i, e := range entries {
		key := Normalize(e.Name)
		idx[key] = append(idx[key], i)
	}
	return idx
}

// Positions returns the positions registered under key, or nil.
func (idx Index) Positions(key string) []int {
	return idx[key]
}

// Meta describes a variant independently of its entries.
type Meta struct {
	Variant string
	Title   string
	// Aliases are entry names whose normalized key resolves every
	// matching position at once.
	Aliases []string
	// Debounce is how long the auto-submit trigger waits after the last
	// keystroke. Zero submits immediately.
	Debounce time.Duration
}

// Catalog is an immutable, ordered list of entries for one variant.
type Catalog struct {
	meta    Meta
	entries []Entry
	index   Index
	aliases map[string]struct{}
}

// New builds a Catalog and its lookup index. The entries slice is copied.
func New(meta Meta, entries []Entry) *Catalog {
	c := &Catalog{
		meta:    meta,
		entries: append([]Entry(nil), entries...),
		aliases: make(map[string]struct{}, len(meta.Aliases)),
	}
	c.index = BuildIndex(c.entries)

	for _, a := range meta.Aliases {
		if key := Normalize(a); key != "" {
			c.aliases[key] = struct{}{}
		}
	}

	if c.meta.Title == "" {
		c.meta.Title = c.meta.Variant
	}

	return c
}

const fallbackName = "MissingNo."

// Fallback returns a single-entry catalog used when a variant cannot be
// loaded, so the client stays usable.
func Fallback(variant string) *Catalog {
	return New(Meta{
		Variant: variant,
		Title:   "Unavailable list",
	}, []Entry{{
		Name:   fallbackName,
		Secret: "This list could not be loaded. Pick another list or try again later.",
	}})
}

func (c *Catalog) Variant() string { return c.meta.Variant }

func (c *Catalog) Title() string { return c.meta.Title }

func (c *Catalog) Debounce() time.Duration { return c.meta.Debounce }

func (c *Catalog) Len() int { return len(c.entries) }

// Positions returns the positions whose name normalizes to key.
func (c *Catalog) Positions(key string) []int { return c.index.Positions(key) }

// Entry returns the entry at pos.
func (c *Catalog) Entry(pos int) (Entry, bool) {
	if pos < 0 || pos >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[pos], true
}

// Entries returns a copy of the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// IsAlias reports whether key is a batch alias with at least one position.
func (c *Catalog) IsAlias(key string) bool {
	if _, ok := c.aliases[key]; !ok {
		return false
	}
	return len(c.index[key]) > 0
}

