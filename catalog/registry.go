/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package catalog

import (
	"embed"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

var (
	ErrUnknownVariant = errors.New("catalog: unknown list")
	ErrNoVariants     = errors.New("catalog: no lists found")
)

var variantPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Variant summarizes a loadable list for the list switcher.
type Variant struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Size  int    `json:"size"`
}

type file struct {
	Variant  string   `yaml:"variant"`
	Title    string   `yaml:"title"`
	Debounce string   `yaml:"debounce"`
	Aliases  []string `yaml:"aliases"`
	Entries  []Entry  `yaml:"entries"`
}

// Registry loads catalogs from *.yaml files in a filesystem and caches the
// parsed result. It is safe for concurrent use.
type Registry struct {
	fsys     fs.FS
	debounce time.Duration
	policy   *bluemonday.Policy

	mu       sync.RWMutex
	catalogs map[string]*Catalog
	order    []string
	failed   map[string]error
}

// Embedded returns the filesystem holding the built-in lists.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewRegistry reads every list in fsys. debounce is used for files that
// do not set their own.
func NewRegistry(fsys fs.FS, debounce time.Duration) (*Registry, error) {
	r := &Registry{
		fsys:     fsys,
		debounce: debounce,
		policy:   bluemonday.StrictPolicy(),
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// Reload re-reads every list. Lists that fail to parse are remembered so
// Load can report why; the previous contents are replaced atomically.
func (r *Registry) Reload() error {
	names, err := fs.Glob(r.fsys, "*.yaml")
	if err != nil {
		return fmt.Errorf("catalog: list files: %w", err)
	}
	sort.Strings(names)

	catalogs := make(map[string]*Catalog, len(names))
	failed := make(map[string]error)
	order := make([]string, 0, len(names))

	for _, name := range names {
		id := strings.TrimSuffix(path.Base(name), path.Ext(name))

		c, err := r.parse(name, id)
		if err != nil {
			failed[id] = err
			continue
		}

		if _, dup := catalogs[c.Variant()]; dup {
			failed[id] = fmt.Errorf("catalog: %s: duplicate list %q", name, c.Variant())
			continue
		}

		catalogs[c.Variant()] = c
		order = append(order, c.Variant())
	}

	if len(catalogs) == 0 && len(failed) == 0 {
		return ErrNoVariants
	}

	r.mu.Lock()
	r.catalogs = catalogs
	r.order = order
	r.failed = failed
	r.mu.Unlock()

	return nil
}

func (r *Registry) parse(name, id string) (*Catalog, error) {
	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", name, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", name, err)
	}

	if f.Variant == "" {
		f.Variant = id
	}
	if !variantPattern.MatchString(f.Variant) {
		return nil, fmt.Errorf("catalog: %s: invalid list id %q", name, f.Variant)
	}

	debounce := r.debounce
	if f.Debounce != "" {
		debounce, err = time.ParseDuration(f.Debounce)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s: debounce: %w", name, err)
		}
		if debounce < 0 {
			return nil, fmt.Errorf("catalog: %s: negative debounce %s", name, debounce)
		}
	}

	entries := make([]Entry, 0, len(f.Entries))
	for i, e := range f.Entries {
		e.Name = r.clean(e.Name)
		e.Secret = r.clean(e.Secret)
		if Normalize(e.Name) == "" {
			return nil, fmt.Errorf("catalog: %s: entry %d has no matchable name", name, i+1)
		}
		entries = append(entries, e)
	}

	return New(Meta{
		Variant:  f.Variant,
		Title:    r.clean(f.Title),
		Aliases:  f.Aliases,
		Debounce: debounce,
	}, entries), nil
}

// clean strips any markup from catalog text. The policy escapes what it
// keeps, and clients insert text rather than HTML, so it is unescaped again.
// Text is stored composed (NFC) so decomposed accents in hand-edited files
// render like the built-in lists.
func (r *Registry) clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(s))))
}

// Load returns the catalog for variant.
func (r *Registry) Load(variant string) (*Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.catalogs[variant]; ok {
		return c, nil
	}
	if err, ok := r.failed[variant]; ok {
		return nil, err
	}

	return nil, fmt.Errorf("%w %q", ErrUnknownVariant, variant)
}

// Variants lists loadable catalogs ordered by file name.
func (r *Registry) Variants() []Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Variant, 0, len(r.order))
	for _, id := range r.order {
		c := r.catalogs[id]
		out = append(out, Variant{ID: id, Title: c.Title(), Size: c.Len()})
	}
	return out
}

// Has reports whether variant is known, loadable or not.
func (r *Registry) Has(variant string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.catalogs[variant]
	if !ok {
		_, ok = r.failed[variant]
	}
	return ok
}

// Default picks preferred if it is loadable, otherwise the first list.
func (r *Registry) Default(preferred string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.catalogs[preferred]; ok {
		return preferred
	}
	if len(r.order) > 0 {
		return r.order[0]
	}
	return preferred
}
