/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package play runs one player's game: the active list, its progress and
// the auto-submit timer, driven by commands from connected clients.
package play

import (
	"context"
	"errors"
	"sync"

	"github.com/Seednode/wordreveal/autosubmit"
	"github.com/Seednode/wordreveal/catalog"
	"github.com/Seednode/wordreveal/reveal"
)

// Kind names a client command.
type Kind string

const (
	CmdSubmit Kind = "submit"
	CmdInput  Kind = "input"
	CmdPrev   Kind = "prev"
	CmdNext   Kind = "next"
	CmdReset  Kind = "reset"
	CmdGiveUp Kind = "give_up"
	CmdSwitch Kind = "switch"
	CmdSync   Kind = "sync"

	// cmdAuto is posted by the auto-submit timer, never by clients.
	cmdAuto Kind = "auto"
)

// EventLists carries the available lists and the active one.
const EventLists reveal.EventType = "variants"

// Command is a message from a client.
type Command struct {
	Kind    Kind   `json:"type"`
	Input   string `json:"input,omitempty"`
	Variant string `json:"variant,omitempty"`

	seq uint64
}

// Lists is the payload of EventLists. Started names the lists the player
// has saved progress for.
type Lists struct {
	Active   string            `json:"active"`
	Variants []catalog.Variant `json:"variants"`
	Started  []string          `json:"started"`
}

// Store is the per-player persistence a session needs.
type Store interface {
	Load(variant string) ([]byte, error)
	Save(variant string, data []byte) error
	Variants(ctx context.Context) []string
	Active() (string, error)
	SetActive(variant string) error
}

// Options configures a Session.
type Options struct {
	Registry *catalog.Registry
	Store    Store
	Listener reveal.Listener
	// Default is the list used when the player has none yet.
	Default string
	Logf    func(format string, args ...any)
}

var ErrClosed = errors.New("play: session closed")

// Session serializes every command for one player on a single goroutine.
type Session struct {
	reg      *catalog.Registry
	store    Store
	listener reveal.Listener
	fallback string
	logf     func(string, ...any)

	ctx  context.Context
	cmds chan Command
	done chan struct{}
	once sync.Once

	trig *autosubmit.Trigger
	game *reveal.Game
}

func New(opts Options) *Session {
	s := &Session{
		reg:      opts.Registry,
		store:    opts.Store,
		listener: opts.Listener,
		fallback: opts.Default,
		logf:     opts.Logf,
		ctx:      context.Background(),
		cmds:     make(chan Command),
		done:     make(chan struct{}),
	}

	if s.logf == nil {
		s.logf = func(string, ...any) {}
	}
	if s.listener == nil {
		s.listener = reveal.ListenerFunc(func(reveal.Event) {})
	}

	s.trig = autosubmit.New(0, func(req autosubmit.Request) {
		if err := s.Post(Command{Kind: cmdAuto, Input: req.Input, seq: req.Seq}); err != nil {
			s.trig.Done()
		}
	})

	return s
}

// Run activates the player's last list and processes commands until ctx
// is done.
func (s *Session) Run(ctx context.Context) {
	defer s.once.Do(func() { close(s.done) })
	defer s.trig.Cancel()

	s.ctx = ctx
	s.activate(s.restore())

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			if res := s.handle(cmd); errors.Is(res.Err, reveal.ErrUnavailable) {
				s.logf("GAMES: Rejected %q, no list is loaded", cmd.Kind)
			}
		}
	}
}

// Post queues cmd, blocking until the session takes it.
func (s *Session) Post(cmd Command) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Done is closed once Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) restore() string {
	active, err := s.store.Active()
	if err != nil {
		s.logf("STORE: Failed to read active list: %v", err)
	}
	if active == "" {
		active = s.fallback
	}
	return active
}

// handle applies cmd. The Result is set for commands that act on the
// game; commands that need a list are rejected with ErrUnavailable
// until one is active.
func (s *Session) handle(cmd Command) reveal.Result {
	switch cmd.Kind {
	case CmdSync:
		s.announce()
		return reveal.Result{}
	case CmdSwitch:
		s.trig.Cancel()
		s.activate(cmd.Variant)
		return reveal.Result{}
	case cmdAuto:
		if cmd.seq != 0 {
			return s.auto(cmd)
		}
		return reveal.Result{}
	case CmdSubmit, CmdInput, CmdPrev, CmdNext, CmdReset, CmdGiveUp:
	default:
		s.logf("GAMES: Ignoring unknown command %q", cmd.Kind)
		return reveal.Result{}
	}

	if s.game == nil {
		s.trig.Cancel()
		res := reveal.Result{
			Outcome: reveal.OutcomeRejected,
			Err:     reveal.ErrUnavailable,
			Status:  reveal.Status{Text: "No list is loaded.", Severity: reveal.SeverityWarning},
		}
		s.status(res.Status)
		return res
	}

	switch cmd.Kind {
	case CmdSubmit:
		s.trig.Cancel()
		return s.game.Submit(cmd.Input)
	case CmdInput:
		s.input(cmd.Input)
	case CmdPrev:
		s.game.Prev()
	case CmdNext:
		s.game.Next()
	case CmdReset:
		s.trig.Cancel()
		return s.game.Reset()
	case CmdGiveUp:
		s.trig.Cancel()
		return s.game.GiveUp()
	}

	return reveal.Result{}
}

// input decides on every keystroke whether to arm the auto-submit timer.
func (s *Session) input(raw string) {
	e := s.game.Check(raw)

	switch {
	case e.Auto:
		s.trig.Schedule(raw)
	case e.Hint != "":
		s.trig.Cancel()
		s.status(reveal.Status{Text: e.Hint, Severity: reveal.SeverityInfo})
	default:
		s.trig.Cancel()
	}
}

// auto submits a fired timer request if nothing superseded it and the
// input is still eligible.
func (s *Session) auto(cmd Command) reveal.Result {
	defer s.trig.Done()

	if !s.trig.Claim(cmd.seq) || s.game == nil {
		return reveal.Result{}
	}
	if !s.game.Check(cmd.Input).Auto {
		return reveal.Result{}
	}

	return s.game.Submit(cmd.Input)
}

// activate loads variant and its saved progress. Unknown lists fall back
// to the registry default; lists that fail to load get a placeholder.
func (s *Session) activate(variant string) {
	id := variant
	if !s.reg.Has(id) {
		id = s.reg.Default(variant)
	}
	if id == "" {
		id = "default"
	}
	if variant != "" && id != variant {
		s.logf("LISTS: Unknown list %q, using %q", variant, id)
	}

	cat, err := s.reg.Load(id)
	if err != nil {
		s.logf("LISTS: Failed to load %q: %v", id, err)
		cat = catalog.Fallback(id)
	}

	state := reveal.NewState()
	data, err := s.store.Load(cat.Variant())
	if err != nil {
		s.logf("STORE: Failed to read %q: %v", cat.Variant(), err)
	} else if state, err = reveal.Decode(data, cat); err != nil {
		s.logf("STORE: Discarding unreadable progress for %q: %v", cat.Variant(), err)
		state = reveal.NewState()
	}

	s.game = reveal.NewGame(cat, state,
		reveal.WithListener(s.listener),
		reveal.WithSaver(s.store),
		reveal.WithErrorHandler(func(err error) {
			s.logf("STORE: %v", err)
		}),
	)
	s.trig.SetDelay(cat.Debounce())

	if err := s.store.SetActive(cat.Variant()); err != nil {
		s.logf("STORE: Failed to remember active list: %v", err)
	}

	s.logf("GAMES: Activated %q (%d/%d revealed)", cat.Variant(), state.Len(), cat.Len())

	s.announce()
}

func (s *Session) announce() {
	active := ""
	if s.game != nil {
		active = s.game.Catalog().Variant()
	}

	s.listener.Notify(reveal.Event{
		Type:    EventLists,
		Payload: Lists{
			Active:   active,
			Variants: s.reg.Variants(),
			Started:  s.store.Variants(s.ctx),
		},
	})

	if s.game != nil {
		s.game.Announce()
	}
}

func (s *Session) status(st reveal.Status) {
	s.listener.Notify(reveal.Event{Type: reveal.EventStatus, Payload: st})
}
