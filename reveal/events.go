/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package reveal

// EventType names a notification sent to render collaborators.
type EventType string

const (
	EventCatalog    EventType = "catalog"
	EventDetail     EventType = "detail"
	EventStatus     EventType = "status"
	EventAck        EventType = "ack"
	EventCompleted  EventType = "completed"
	EventInputState EventType = "input_state"
)

// Event is a single notification. Payload holds one of the view types
// below, matching Type.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Listener receives events in the order they happen.
type Listener interface {
	Notify(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) Notify(e Event) { f(e) }

// Severity classifies a status message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Status is a short message for the player.
type Status struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// ItemStatus is how a catalog position is shown in the list.
type ItemStatus string

const (
	ItemHidden  ItemStatus = "hidden"
	ItemFound   ItemStatus = "found"
	ItemGivenUp ItemStatus = "given_up"
)

// Item is one row of the catalog view. Hidden rows carry a placeholder
// label instead of the entry name.
type Item struct {
	Position int        `json:"position"`
	Label    string     `json:"label"`
	Status   ItemStatus `json:"status"`
}

// CatalogView is a full snapshot of the list and reveal progress.
type CatalogView struct {
	Variant  string `json:"variant"`
	Title    string `json:"title"`
	Items    []Item `json:"items"`
	Revealed int    `json:"revealed"`
	Found    int    `json:"found"`
	Total    int    `json:"total"`
}

// DetailView is the entry under the cursor, or the empty-state message.
type DetailView struct {
	Empty    bool   `json:"empty"`
	Message  string `json:"message,omitempty"`
	Position int    `json:"position"`
	Name     string `json:"name,omitempty"`
	Secret   string `json:"secret,omitempty"`
	GivenUp  bool   `json:"given_up,omitempty"`
	Index    int    `json:"index"`
	Count    int    `json:"count"`
	CanPrev  bool   `json:"can_prev"`
	CanNext  bool   `json:"can_next"`
}

// Ack classifies an accepted submission so the client can clear its input
// and flash the matching style.
type Ack struct {
	Outcome Outcome `json:"outcome"`
	Fresh   bool    `json:"fresh"`
}

// InputState tells the client whether guesses are accepted.
type InputState struct {
	Enabled bool `json:"enabled"`
}

// Completion carries the completion banner.
type Completion struct {
	Message string `json:"message"`
}
