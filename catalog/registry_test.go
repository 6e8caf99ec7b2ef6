/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package catalog

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedLists(t *testing.T) {
	r, err := NewRegistry(Embedded(), 150*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, []Variant{
		{ID: "gen1", Title: "Generation I", Size: 151},
		{ID: "gen2", Title: "Generation II", Size: 100},
	}, r.Variants())

	gen1, err := r.Load("gen1")
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, gen1.Debounce())
	assert.True(t, gen1.IsAlias("nidoran"))
	assert.Len(t, gen1.Positions("nidoran"), 2)

	for i, e := range gen1.Entries() {
		assert.Contains(t, gen1.Positions(Normalize(e.Name)), i, "entry %q not indexed", e.Name)
	}

	farfetchd := gen1.Positions("farfetchd")
	require.Len(t, farfetchd, 1)
	e, _ := gen1.Entry(farfetchd[0])
	assert.Equal(t, "Farfetch'd", e.Name)

	gen2, err := r.Load("gen2")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), gen2.Debounce())
}

func TestRegistryParsesFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"birds.yaml": {Data: []byte(`
title: "<b>Birds</b>"
aliases: [Pidgey]
entries:
  - name: Pidgey
    secret: "A <script>alert(1)</script>small bird & friend."
  - name: Pidgeotto
    secret: Bigger.
`)},
		"broken.yaml": {Data: []byte("entries: [")},
		"nameless.yaml": {Data: []byte(`
entries:
  - name: "!!"
    secret: nope
`)},
		"README.md": {Data: []byte("ignored")},
	}

	r, err := NewRegistry(fsys, 75*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, []Variant{{ID: "birds", Title: "Birds", Size: 2}}, r.Variants())

	birds, err := r.Load("birds")
	require.NoError(t, err)
	assert.Equal(t, 75*time.Millisecond, birds.Debounce())

	e, _ := birds.Entry(0)
	assert.Equal(t, "A small bird & friend.", e.Secret)

	_, err = r.Load("broken")
	assert.Error(t, err)
	assert.True(t, r.Has("broken"))

	_, err = r.Load("nameless")
	assert.ErrorContains(t, err, "no matchable name")

	_, err = r.Load("dragons")
	assert.ErrorIs(t, err, ErrUnknownVariant)
	assert.False(t, r.Has("dragons"))
}

func TestRegistryRejectsBadDebounce(t *testing.T) {
	fsys := fstest.MapFS{
		"slow.yaml": {Data: []byte("debounce: soon\nentries:\n  - name: Mew\n")},
	}

	r, err := NewRegistry(fsys, 0)
	require.NoError(t, err)

	_, err = r.Load("slow")
	assert.ErrorContains(t, err, "debounce")
}

func TestRegistryDefault(t *testing.T) {
	r, err := NewRegistry(Embedded(), 0)
	require.NoError(t, err)

	assert.Equal(t, "gen2", r.Default("gen2"))
	assert.Equal(t, "gen1", r.Default("gen7"))
}

func TestRegistryEmpty(t *testing.T) {
	_, err := NewRegistry(fstest.MapFS{}, 0)
	assert.ErrorIs(t, err, ErrNoVariants)
}

func TestRegistryComposesText(t *testing.T) {
	fsys := fstest.MapFS{
		"accents.yaml": {Data: []byte("entries:\n  - name: Flabe\u0301be\u0301\n    secret: Pokemon de\u0301licat.\n")},
	}

	r, err := NewRegistry(fsys, 0)
	require.NoError(t, err)

	c, err := r.Load("accents")
	require.NoError(t, err)

	e, _ := c.Entry(0)
	assert.Equal(t, "Flab\u00e9b\u00e9", e.Name)
	assert.Equal(t, "Pokemon d\u00e9licat.", e.Secret)
	assert.Equal(t, []int{0}, c.Positions("flabb"))
}
