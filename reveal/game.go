/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package reveal implements guess matching and the reveal state machine
// for a single catalog.
package reveal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Seednode/wordreveal/catalog"
)

// Outcome classifies what a command did.
type Outcome string

const (
	OutcomeRejected             Outcome = "rejected"
	OutcomeRevealedNew          Outcome = "revealed_new"
	OutcomeAlreadyRevealed      Outcome = "already_revealed"
	OutcomeRevealedBatch        Outcome = "revealed_batch"
	OutcomeAlreadyRevealedBatch Outcome = "already_revealed_batch"
	OutcomeGaveUp               Outcome = "gave_up"
	OutcomeReset                Outcome = "reset"
)

// Fresh reports whether the outcome revealed something new.
func (o Outcome) Fresh() bool {
	return o == OutcomeRevealedNew || o == OutcomeRevealedBatch
}

// Result describes the effect of a command. Err is set only for
// OutcomeRejected.
type Result struct {
	Outcome   Outcome
	Err       error
	Positions []int
	Count     int
	Status    Status
	Completed bool
}

// Saver persists an encoded State for a list.
type Saver interface {
	Save(variant string, data []byte) error
}

// Option configures a Game.
type Option func(*Game)

func WithListener(l Listener) Option {
	return func(g *Game) { g.listener = l }
}

func WithSaver(s Saver) Option {
	return func(g *Game) { g.saver = s }
}

// WithErrorHandler receives persistence failures.
func WithErrorHandler(fn func(error)) Option {
	return func(g *Game) { g.onError = fn }
}

const (
	emptyDetail     = "Nothing revealed yet. Try guessing a secret word."
	completeMessage = "Congratulations, all found!"
)

// Game is the play state of one catalog. It is not safe for concurrent
// use; callers serialize commands.
type Game struct {
	cat   *catalog.Catalog
	state *State

	cursor     int
	closed     bool
	celebrated bool

	listener Listener
	saver    Saver
	onError  func(error)
}

// NewGame wraps state for cat. A nil state starts empty. The cursor starts
// on the most recently revealed entry.
func NewGame(cat *catalog.Catalog, state *State, opts ...Option) *Game {
	if state == nil {
		state = NewState()
	}

	g := &Game{
		cat:    cat,
		state:  state,
		cursor: state.Len() - 1,
	}
	g.celebrated = g.Complete()

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *Game) Catalog() *catalog.Catalog { return g.cat }

func (g *Game) State() *State { return g.state }

// Cursor is the index into the reveal order being shown, or -1.
func (g *Game) Cursor() int { return g.cursor }

// Closed reports whether the player gave up on this list.
func (g *Game) Closed() bool { return g.closed }

// Complete reports whether every entry was found by the player.
func (g *Game) Complete() bool {
	n := g.cat.Len()
	return n > 0 && g.state.Len() == n && g.state.UserLen() == n
}

// Submit matches raw against the catalog and updates the state.
//
// Positions sharing a key are resolved in catalog order: the first one
// not yet revealed wins, and when all are revealed the first one is shown
// again. Alias keys reveal every position at once.
func (g *Game) Submit(raw string) Result {
	input := strings.TrimSpace(raw)
	if input == "" {
		return g.reject(ErrEmptyInput, "Please type a word to guess.")
	}

	if g.closed {
		return g.reject(ErrSubmissionClosed, "You gave up on this list. Reset to play again.")
	}

	key := catalog.Normalize(input)
	if key == "" {
		return g.reject(ErrInvalidInput, fmt.Sprintf("\"%s\" is not a valid guess.", input))
	}

	if g.cat.IsAlias(key) {
		return g.submitBatch(key)
	}

	positions := g.cat.Positions(key)
	if len(positions) == 0 {
		return g.reject(ErrNotSecret, fmt.Sprintf("\"%s\" is not a secret word (or it's misspelled).", input))
	}

	for _, pos := range positions {
		if g.state.Revealed(pos) {
			continue
		}

		g.state.reveal(pos)
		g.state.credit(pos)
		g.cursor = g.state.Len() - 1

		return g.accept(Result{
			Outcome:   OutcomeRevealedNew,
			Positions: []int{pos},
			Count:     1,
			Status: Status{
				Text:     fmt.Sprintf("Nice! \"%s\" revealed.", g.name(pos)),
				Severity: SeveritySuccess,
			},
		})
	}

	pos := positions[0]
	g.state.credit(pos)
	g.cursor = g.state.IndexOf(pos)

	return g.accept(Result{
		Outcome:   OutcomeAlreadyRevealed,
		Positions: []int{pos},
		Status: Status{
			Text:     fmt.Sprintf("You already revealed \"%s\". Showing it now.", g.name(pos)),
			Severity: SeverityInfo,
		},
	})
}

func (g *Game) submitBatch(key string) Result {
	positions := g.cat.Positions(key)
	name := g.name(positions[0])

	var fresh []int
	for _, pos := range positions {
		if !g.state.Revealed(pos) {
			fresh = append(fresh, pos)
		}
	}

	if len(fresh) == 0 {
		for _, pos := range positions {
			g.state.credit(pos)
		}
		g.cursor = g.state.IndexOf(positions[0])

		return g.accept(Result{
			Outcome:   OutcomeAlreadyRevealedBatch,
			Positions: append([]int(nil), positions...),
			Status: Status{
				Text:     fmt.Sprintf("You already revealed %s. Showing it now.", name),
				Severity: SeverityInfo,
			},
		})
	}

	for _, pos := range fresh {
		g.state.reveal(pos)
		g.state.credit(pos)
	}
	g.cursor = g.state.Len() - 1

	return g.accept(Result{
		Outcome:   OutcomeRevealedBatch,
		Positions: fresh,
		Count:     len(fresh),
		Status: Status{
			Text:     fmt.Sprintf("Revealed %d %s!", len(fresh), name),
			Severity: SeveritySuccess,
		},
	})
}

// Eligibility is the auto-submit decision for a partial input.
type Eligibility struct {
	Key       string
	Positions []int
	// Auto is set when at least one matching entry has not been found by
	// the player yet.
	Auto bool
	// Hint is set instead of Auto when every matching entry was already
	// found; submitting again must be an explicit action.
	Hint string
}

// Check decides whether raw may be submitted without confirmation.
func (g *Game) Check(raw string) Eligibility {
	key := catalog.Normalize(raw)
	if key == "" || g.closed {
		return Eligibility{Key: key}
	}

	positions := g.cat.Positions(key)
	if len(positions) == 0 {
		return Eligibility{Key: key}
	}

	e := Eligibility{Key: key, Positions: positions}
	for _, pos := range positions {
		if !g.state.UserRevealed(pos) {
			e.Auto = true
			return e
		}
	}

	e.Hint = fmt.Sprintf("You already found \"%s\". Press Enter to show it again.", g.name(positions[0]))
	return e
}

// GiveUp reveals every remaining entry without crediting the player and
// closes submission until Reset.
func (g *Game) GiveUp() Result {
	if g.state.Len() >= g.cat.Len() {
		return g.reject(ErrAlreadyComplete, "All targets are already revealed.")
	}

	var fresh []int
	for pos := 0; pos < g.cat.Len(); pos++ {
		if g.state.reveal(pos) {
			fresh = append(fresh, pos)
		}
	}

	g.closed = true
	g.cursor = g.state.Len() - 1
	err := g.persist()

	res := Result{
		Outcome:   OutcomeGaveUp,
		Positions: fresh,
		Count:     len(fresh),
		Status: Status{
			Text:     "You gave up. All remaining secrets are revealed and your own finds stay highlighted. Use Reset to start over.",
			Severity: SeverityWarning,
		},
	}

	g.emit(EventCatalog, g.CatalogView())
	g.emit(EventDetail, g.Detail())
	g.emit(EventStatus, res.Status)
	g.emit(EventInputState, InputState{Enabled: false})
	g.unsaved(err)

	return res
}

// Reset clears all progress for the list and reopens submission.
func (g *Game) Reset() Result {
	g.state.clear()
	g.cursor = -1
	g.closed = false
	g.celebrated = false
	err := g.persist()

	res := Result{
		Outcome: OutcomeReset,
		Status:  Status{Text: "Progress has been reset.", Severity: SeveritySuccess},
	}

	g.emit(EventCatalog, g.CatalogView())
	g.emit(EventDetail, g.Detail())
	g.emit(EventStatus, res.Status)
	g.emit(EventInputState, InputState{Enabled: true})
	g.unsaved(err)

	return res
}

// Prev moves the cursor to the previously revealed entry.
func (g *Game) Prev() bool {
	if g.cursor <= 0 {
		return false
	}
	g.cursor--
	g.emit(EventDetail, g.Detail())
	return true
}

// Next moves the cursor to the next revealed entry.
func (g *Game) Next() bool {
	if g.cursor >= g.state.Len()-1 {
		return false
	}
	g.cursor++
	g.emit(EventDetail, g.Detail())
	return true
}

// Announce sends the full view, used when a client attaches or the list
// changes.
func (g *Game) Announce() {
	g.emit(EventCatalog, g.CatalogView())
	g.emit(EventDetail, g.Detail())
	g.emit(EventInputState, InputState{Enabled: !g.closed})
}

// CatalogView snapshots the list and progress.
func (g *Game) CatalogView() CatalogView {
	v := CatalogView{
		Variant:  g.cat.Variant(),
		Title:    g.cat.Title(),
		Items:    make([]Item, 0, g.cat.Len()),
		Revealed: g.state.Len(),
		Found:    g.state.UserLen(),
		Total:    g.cat.Len(),
	}

	for pos := 0; pos < g.cat.Len(); pos++ {
		item := Item{Position: pos}

		switch {
		case g.state.UserRevealed(pos):
			item.Status = ItemFound
			item.Label = g.name(pos)
		case g.state.Revealed(pos):
			item.Status = ItemGivenUp
			item.Label = g.name(pos)
		default:
			item.Status = ItemHidden
			item.Label = "Hidden #" + strconv.Itoa(pos+1)
		}

		v.Items = append(v.Items, item)
	}

	return v
}

// Detail describes the entry under the cursor. Index is 1-based.
func (g *Game) Detail() DetailView {
	n := g.state.Len()
	cur := g.cursor
	if n == 0 || cur < 0 {
		return DetailView{Empty: true, Message: emptyDetail}
	}

	if cur > n-1 {
		cur = n - 1
	}

	pos, _ := g.state.At(cur)
	e, _ := g.cat.Entry(pos)

	return DetailView{
		Position: pos,
		Name:     e.Name,
		Secret:   e.Secret,
		GivenUp:  !g.state.UserRevealed(pos),
		Index:    cur + 1,
		Count:    n,
		CanPrev:  cur > 0,
		CanNext:  cur < n-1,
	}
}

func (g *Game) accept(res Result) Result {
	err := g.persist()

	if res.Outcome.Fresh() && g.Complete() && !g.celebrated {
		g.celebrated = true
		res.Completed = true
	}

	g.emit(EventCatalog, g.CatalogView())
	g.emit(EventDetail, g.Detail())
	g.emit(EventStatus, res.Status)
	g.emit(EventAck, Ack{Outcome: res.Outcome, Fresh: res.Outcome.Fresh()})

	if res.Completed {
		g.emit(EventCompleted, Completion{Message: completeMessage})
	}

	g.unsaved(err)

	return res
}

func (g *Game) reject(err error, text string) Result {
	res := Result{
		Outcome: OutcomeRejected,
		Err:     err,
		Status:  Status{Text: text, Severity: SeverityInfo},
	}
	g.emit(EventStatus, res.Status)
	return res
}

// persist writes the state after it changed. Failures do not undo the
// change; the in-memory state stays authoritative.
func (g *Game) persist() error {
	if g.saver == nil {
		return nil
	}

	data, err := json.Marshal(g.state)
	if err == nil {
		err = g.saver.Save(g.cat.Variant(), data)
	}
	if err != nil {
		return fmt.Errorf("reveal: save %s: %w", g.cat.Variant(), err)
	}

	return nil
}

// unsaved reports a persistence failure after the command's own status.
func (g *Game) unsaved(err error) {
	if err == nil {
		return
	}

	if g.onError != nil {
		g.onError(err)
	}
	g.emit(EventStatus, Status{Text: "Progress could not be saved.", Severity: SeverityWarning})
}

func (g *Game) emit(t EventType, payload any) {
	if g.listener == nil {
		return
	}
	g.listener.Notify(Event{Type: t, Payload: payload})
}

func (g *Game) name(pos int) string {
	e, _ := g.cat.Entry(pos)
	return e.Name
}
