/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package play

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/wordreveal/catalog"
	"github.com/Seednode/wordreveal/reveal"
	"github.com/Seednode/wordreveal/store"
)

type memStore struct {
	mu      sync.Mutex
	records map[string][]byte
	active  string
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]byte)}
}

func (m *memStore) Load(variant string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[variant], nil
}

func (m *memStore) Save(variant string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[variant] = data
	return nil
}

func (m *memStore) Variants(context.Context) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for variant := range m.records {
		out = append(out, variant)
	}
	sort.Strings(out)
	return out
}

func (m *memStore) Active() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, nil
}

func (m *memStore) SetActive(variant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = variant
	return nil
}

func (m *memStore) record(variant string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.records[variant])
}

type recorder struct {
	mu     sync.Mutex
	events []reveal.Event
}

func (r *recorder) Notify(e reveal.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) types() []reveal.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reveal.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if st, ok := e.Payload.(reveal.Status); ok {
			out = append(out, st.Text)
		}
	}
	return out
}

func (r *recorder) lastCatalog() (reveal.CatalogView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if v, ok := r.events[i].Payload.(reveal.CatalogView); ok {
			return v, true
		}
	}
	return reveal.CatalogView{}, false
}

func registry(t *testing.T) *catalog.Registry {
	t.Helper()

	r, err := catalog.NewRegistry(fstest.MapFS{
		"birds.yaml": {Data: []byte(`
title: Birds
debounce: 0s
entries:
  - {name: Pidgey, secret: Small.}
  - {name: Pidgeotto, secret: Bigger.}
`)},
		"nido.yaml": {Data: []byte(`
debounce: 40ms
aliases: [Nidoran]
entries:
  - {name: "Nidoran♀", secret: Female.}
  - {name: Nidoran, secret: Either.}
  - {name: Nidoran, secret: Other.}
`)},
		"broken.yaml": {Data: []byte("entries: [")},
	}, 0)
	require.NoError(t, err)

	return r
}

func newSession(t *testing.T, st *memStore, rec *recorder) *Session {
	t.Helper()

	return New(Options{
		Registry: registry(t),
		Store:    st,
		Listener: rec,
		Default:  "nido",
	})
}

func TestActivateUsesDefaultList(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)

	s.activate(s.restore())

	assert.Equal(t, []reveal.EventType{
		EventLists, reveal.EventCatalog, reveal.EventDetail, reveal.EventInputState,
	}, rec.types())
	assert.Equal(t, "nido", st.active)
	assert.Equal(t, 40*time.Millisecond, s.trig.Delay())

	lists := rec.events[0].Payload.(Lists)
	assert.Equal(t, "nido", lists.Active)
	assert.Len(t, lists.Variants, 2)
	assert.Empty(t, lists.Started)
}

func TestListsNameStartedLists(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)
	s.activate("birds")
	s.handle(Command{Kind: CmdSubmit, Input: "pidgey"})
	rec.reset()

	s.handle(Command{Kind: CmdSync})

	lists := rec.events[0].Payload.(Lists)
	assert.Equal(t, "birds", lists.Active)
	assert.Equal(t, []string{"birds"}, lists.Started)
}

func TestActivateRestoresSavedProgress(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	st.active = "birds"
	st.records["birds"] = []byte(`{"all":[1,0],"user":[1]}`)
	s := newSession(t, st, rec)

	s.activate(s.restore())

	view, ok := rec.lastCatalog()
	require.True(t, ok)
	assert.Equal(t, "birds", view.Variant)
	assert.Equal(t, 2, view.Revealed)
	assert.Equal(t, 1, view.Found)
	assert.Equal(t, 1, s.game.Cursor())
}

func TestActivateDiscardsUnreadableProgress(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	st.records["birds"] = []byte(`"nonsense"`)
	s := newSession(t, st, rec)

	s.activate("birds")

	assert.Equal(t, 0, s.game.State().Len())
}

func TestSwitchToUnknownListFallsBack(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)

	s.handle(Command{Kind: CmdSwitch, Variant: "dragons"})

	assert.Equal(t, "birds", s.game.Catalog().Variant())
	assert.Equal(t, "birds", st.active)
}

func TestSwitchToBrokenListUsesPlaceholder(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)

	s.handle(Command{Kind: CmdSwitch, Variant: "broken"})

	assert.Equal(t, "broken", s.game.Catalog().Variant())
	assert.Equal(t, 1, s.game.Catalog().Len())
}

func TestCommandsWithoutListAreRejected(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)

	for _, kind := range []Kind{CmdSubmit, CmdInput, CmdPrev, CmdNext, CmdReset, CmdGiveUp} {
		res := s.handle(Command{Kind: kind, Input: "pidgey"})

		assert.Equal(t, reveal.OutcomeRejected, res.Outcome, "%s", kind)
		assert.ErrorIs(t, res.Err, reveal.ErrUnavailable, "%s", kind)
	}

	assert.Len(t, rec.statuses(), 6)
	assert.Equal(t, "No list is loaded.", rec.statuses()[0])
	assert.Empty(t, st.records)
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)

	res := s.handle(Command{Kind: "dance"})

	assert.NoError(t, res.Err)
	assert.Empty(t, rec.events)
}

func TestHandleReturnsGameResult(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)
	s.activate("birds")

	res := s.handle(Command{Kind: CmdSubmit, Input: "pidgey"})
	assert.Equal(t, reveal.OutcomeRevealedNew, res.Outcome)

	res = s.handle(Command{Kind: CmdSubmit, Input: "dragonite"})
	assert.ErrorIs(t, res.Err, reveal.ErrNotSecret)
}

// A list may be named "active"; its progress must not be mistaken for the
// record of the last used list.
func TestListNamedActiveSurvivesRestart(t *testing.T) {
	base := t.TempDir()
	reg, err := catalog.NewRegistry(fstest.MapFS{
		"active.yaml": {Data: []byte(`
debounce: 0s
entries:
  - {name: Pidgey, secret: Small.}
  - {name: Pidgeotto, secret: Bigger.}
`)},
		"birds.yaml": {Data: []byte(`
entries:
  - {name: Spearow, secret: Sharp.}
`)},
	}, 0)
	require.NoError(t, err)

	open := func() *Session {
		ds, err := store.Open(base, 0)
		require.NoError(t, err)
		return New(Options{Registry: reg, Store: ds.For("ash"), Default: "birds"})
	}

	s := open()
	s.activate(s.restore())
	s.handle(Command{Kind: CmdSwitch, Variant: "active"})
	res := s.handle(Command{Kind: CmdSubmit, Input: "pidgey"})
	require.Equal(t, reveal.OutcomeRevealedNew, res.Outcome)

	for range 2 {
		s = open()
		s.activate(s.restore())

		assert.Equal(t, "active", s.game.Catalog().Variant())
		assert.Equal(t, []int{0}, s.game.State().User())
	}
}

func TestSubmitPersistsAndSwitchKeepsListsApart(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)
	s.activate("birds")

	s.handle(Command{Kind: CmdSubmit, Input: "PIDGEY"})
	assert.JSONEq(t, `{"all":[0],"user":[0]}`, st.record("birds"))

	s.handle(Command{Kind: CmdSwitch, Variant: "nido"})
	assert.Equal(t, 0, s.game.State().Len())

	s.handle(Command{Kind: CmdSwitch, Variant: "birds"})
	assert.Equal(t, []int{0}, s.game.State().User())
}

func TestGiveUpIsClearedBySwitching(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)
	s.activate("birds")

	s.handle(Command{Kind: CmdGiveUp})
	require.True(t, s.game.Closed())

	s.handle(Command{Kind: CmdSwitch, Variant: "birds"})
	assert.False(t, s.game.Closed())
	assert.Equal(t, 2, s.game.State().Len(), "given-up entries stay revealed")
}

func TestInputHintDoesNotArmTimer(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)
	s.activate("nido")
	s.handle(Command{Kind: CmdSubmit, Input: "nidoranf"})
	rec.reset()

	s.handle(Command{Kind: CmdInput, Input: "Nidoran♀"})

	assert.False(t, s.trig.Pending())
	assert.Equal(t, []string{`You already found "Nidoran♀". Press Enter to show it again.`}, rec.statuses())
}

func TestInputArmsTimerForEligibleEntry(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)
	s.activate("nido")

	s.handle(Command{Kind: CmdInput, Input: "nidora"})
	assert.False(t, s.trig.Pending())

	s.handle(Command{Kind: CmdInput, Input: "nidoran"})
	assert.True(t, s.trig.Pending())

	s.handle(Command{Kind: CmdSubmit, Input: "nidoran"})
	assert.False(t, s.trig.Pending(), "manual submit cancels the timer")
	assert.Len(t, s.game.State().User(), 2)
}

func TestStaleAutoSubmitIsIgnored(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)
	s.activate("birds")

	s.handle(Command{Kind: cmdAuto, Input: "pidgey"})
	s.handle(Command{Kind: cmdAuto, Input: "pidgey", seq: 99})

	assert.Equal(t, 0, s.game.State().Len())
}

func TestRunAutoSubmits(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	st.active = "birds"
	s := newSession(t, st, rec)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	require.NoError(t, s.Post(Command{Kind: CmdInput, Input: "Pidgeotto"}))

	assert.Eventually(t, func() bool {
		return st.record("birds") != ""
	}, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"all":[1],"user":[1]}`, st.record("birds"))

	cancel()
	<-s.Done()
	assert.ErrorIs(t, s.Post(Command{Kind: CmdSync}), ErrClosed)
}

func TestRunDebouncesTyping(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	s := newSession(t, st, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.NoError(t, s.Post(Command{Kind: CmdInput, Input: "nidoran"}))
	require.NoError(t, s.Post(Command{Kind: CmdInput, Input: "nidoranf"}))

	assert.Eventually(t, func() bool {
		return st.record("nido") != ""
	}, time.Second, 5*time.Millisecond)

	var rec2 struct {
		All  []int `json:"all"`
		User []int `json:"user"`
	}
	require.NoError(t, json.Unmarshal([]byte(st.record("nido")), &rec2))
	assert.Equal(t, []int{0}, rec2.User, "only the last keystroke is submitted")
}

func TestSaveFailureIsReported(t *testing.T) {
	st, rec := newMemStore(), &recorder{}
	st.saveErr = errors.New("disk full")
	s := newSession(t, st, rec)
	s.activate("birds")
	rec.reset()

	s.handle(Command{Kind: CmdSubmit, Input: "pidgey"})

	assert.Equal(t, []int{0}, s.game.State().User())
	assert.Equal(t, []string{`Nice! "Pidgey" revealed.`, "Progress could not be saved."}, rec.statuses())
}
