/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package store persists reveal records per player and list on disk.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

const (
	ext = ".json"
	// activeKey holds the last used list. List ids cannot contain '-', so
	// it never collides with a progress record.
	activeKey = "-active"
)

var ErrInvalidKey = errors.New("store: invalid key")

// Store keeps one file per player and list under a base directory:
// <base>/<player>/<variant>.json. It is safe for concurrent use.
type Store struct {
	d        *diskv.Diskv
	basePath string
}

// Open returns a Store rooted at basePath, creating it if needed.
// cacheSize bounds the in-memory read cache in bytes.
func Open(basePath string, cacheSize uint64) (*Store, error) {
	if basePath == "" {
		return nil, errors.New("store: base path required")
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}

	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPath,
			InverseTransform:  pathToKey,
			CacheSizeMax:      cacheSize,
		}),
		basePath: basePath,
	}, nil
}

func (s *Store) BasePath() string { return s.basePath }

// Load returns the stored record, or nil if there is none.
func (s *Store) Load(player, variant string) ([]byte, error) {
	key, err := toKey(player, variant)
	if err != nil {
		return nil, err
	}

	data, err := s.d.Read(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", key, err)
	}

	return data, nil
}

// Save replaces the record.
func (s *Store) Save(player, variant string, data []byte) error {
	key, err := toKey(player, variant)
	if err != nil {
		return err
	}

	if err := s.d.Write(key, data); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}

	return nil
}

// Variants lists, sorted, the lists a player has progress records for.
func (s *Store) Variants(ctx context.Context, player string) []string {
	out := []string{}

	for key := range s.d.KeysPrefix(player+"/", ctx.Done()) {
		_, variant, _ := strings.Cut(key, "/")
		if variant == activeKey {
			continue
		}
		out = append(out, variant)
	}
	sort.Strings(out)

	return out
}

// Active returns the list the player used last, or "".
func (s *Store) Active(player string) (string, error) {
	data, err := s.Load(player, activeKey)
	return strings.TrimSpace(string(data)), err
}

func (s *Store) SetActive(player, variant string) error {
	return s.Save(player, activeKey, []byte(variant))
}

// For scopes the store to one player.
func (s *Store) For(player string) *Scoped {
	return &Scoped{s: s, player: player}
}

// Scoped is a Store bound to a single player.
type Scoped struct {
	s      *Store
	player string
}

func (p *Scoped) Load(variant string) ([]byte, error) { return p.s.Load(p.player, variant) }

func (p *Scoped) Save(variant string, data []byte) error { return p.s.Save(p.player, variant, data) }

func (p *Scoped) Variants(ctx context.Context) []string { return p.s.Variants(ctx, p.player) }

func (p *Scoped) Active() (string, error) { return p.s.Active(p.player) }

func (p *Scoped) SetActive(variant string) error { return p.s.SetActive(p.player, variant) }

func toKey(player, variant string) (string, error) {
	if !validPart(player) || !validPart(variant) {
		return "", fmt.Errorf("%w: %q/%q", ErrInvalidKey, player, variant)
	}
	return player + "/" + variant, nil
}

// validPart keeps keys inside the base directory.
func validPart(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func keyToPath(key string) *diskv.PathKey {
	player, variant, _ := strings.Cut(key, "/")
	return &diskv.PathKey{
		Path:     []string{player},
		FileName: variant + ext,
	}
}

func pathToKey(pk *diskv.PathKey) string {
	return strings.Join(pk.Path, "/") + "/" + strings.TrimSuffix(pk.FileName, ext)
}
