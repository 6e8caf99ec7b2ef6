/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package reveal

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/Seednode/wordreveal/catalog"
)

// State records which catalog positions are revealed, in reveal order, and
// which of those the player found on their own. A revealed position that is
// not user-revealed was given up.
type State struct {
	order []int
	at    map[int]int
	user  []int
	found map[int]struct{}
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		at:    make(map[int]int),
		found: make(map[int]struct{}),
	}
}

// Revealed reports whether pos has been revealed by any means.
func (s *State) Revealed(pos int) bool {
	_, ok := s.at[pos]
	return ok
}

// UserRevealed reports whether the player guessed pos.
func (s *State) UserRevealed(pos int) bool {
	_, ok := s.found[pos]
	return ok
}

// IndexOf returns the location of pos in the reveal order, or -1.
func (s *State) IndexOf(pos int) int {
	if i, ok := s.at[pos]; ok {
		return i
	}
	return -1
}

func (s *State) Len() int     { return len(s.order) }
func (s *State) UserLen() int { return len(s.user) }

// Order returns a copy of the reveal order.
func (s *State) Order() []int {
	return append([]int{}, s.order...)
}

// User returns a copy of the user-revealed positions in the order they
// were credited.
func (s *State) User() []int {
	return append([]int{}, s.user...)
}

// At returns the position shown at cursor i of the reveal order.
func (s *State) At(i int) (int, bool) {
	if i < 0 || i >= len(s.order) {
		return 0, false
	}
	return s.order[i], true
}

func (s *State) reveal(pos int) bool {
	if s.Revealed(pos) {
		return false
	}
	s.at[pos] = len(s.order)
	s.order = append(s.order, pos)
	return true
}

// credit marks pos as found by the player. pos must already be revealed.
func (s *State) credit(pos int) bool {
	if s.UserRevealed(pos) || !s.Revealed(pos) {
		return false
	}
	s.found[pos] = struct{}{}
	s.user = append(s.user, pos)
	return true
}

func (s *State) clear() {
	s.order = nil
	s.user = nil
	s.at = make(map[int]int)
	s.found = make(map[int]struct{})
}

// record is the persisted layout of a State.
type record struct {
	All  []int `json:"all"`
	User []int `json:"user"`
}

// MarshalJSON encodes the state as {"all": [...], "user": [...]}.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{All: s.Order(), User: s.User()})
}

// Decode reads a persisted record for cat. Empty input yields an empty
// state. Two layouts are accepted: the current {"all", "user"} object and
// the legacy array of normalized names, which is matched against cat in
// order, each name consuming the first unused position with that key.
//
// Positions outside cat are dropped and user positions missing from "all"
// are appended to it. On malformed input Decode returns an empty state
// together with the error.
func Decode(data []byte, cat *catalog.Catalog) (*State, error) {
	s := NewState()
	if len(data) == 0 {
		return s, nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return s, fmt.Errorf("reveal: decode record: %w", err)
	}

	switch v := raw.(type) {
	case nil:
		return s, nil
	case []any:
		decodeLegacy(s, v, cat)
		return s, nil
	case map[string]any:
		all, _ := v["all"].([]any)
		for _, x := range all {
			if pos, ok := position(x, cat.Len()); ok {
				s.reveal(pos)
			}
		}

		user, _ := v["user"].([]any)
		for _, x := range user {
			if pos, ok := position(x, cat.Len()); ok {
				s.reveal(pos)
				s.credit(pos)
			}
		}
		return s, nil
	default:
		return s, fmt.Errorf("reveal: decode record: unexpected %T", raw)
	}
}

func decodeLegacy(s *State, names []any, cat *catalog.Catalog) {
	used := make(map[int]struct{})

	for _, x := range names {
		name, ok := x.(string)
		if !ok {
			continue
		}

		for _, pos := range cat.Positions(catalog.Normalize(name)) {
			if _, taken := used[pos]; taken {
				continue
			}
			used[pos] = struct{}{}
			s.reveal(pos)
			s.credit(pos)
			break
		}
	}
}

func position(x any, size int) (int, bool) {
	var f float64

	switch v := x.(type) {
	case float64:
		f = v
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < 0 || f >= float64(size) {
		return 0, false
	}

	return int(f), true
}
