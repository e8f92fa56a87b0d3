package clinicchat

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MessageStatus tracks the lifecycle of an optimistic send.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

// DefaultMatchWindow bounds how far apart a local optimistic timestamp and
// the server timestamp of its confirmation may be and still refer to the same
// message. The value is a heuristic with no hard rationale; under slow
// networks or rapid duplicate sends of identical text it can misattribute a
// match. Tune per deployment via WithMatchWindow.
const DefaultMatchWindow = 10 * time.Second

var ErrEmptyContent = errors.New("message content is empty")

// ViewMessage is one row of the merged message view: either a persisted
// message or an optimistic entry awaiting confirmation.
type ViewMessage struct {
	Message
	TempID  string
	Status  MessageStatus
	Pending bool
}

// ViewEventKind discriminates reconciler input events.
type ViewEventKind int

const (
	PageLoaded ViewEventKind = iota
	LiveMessage
	SendResult
)

// ViewEvent is one input to the reconciler. All three sources, history
// pages, live inserts and send outcomes, flow through the same reducer so
// the merge logic stays independent of any transport.
type ViewEvent struct {
	Kind       ViewEventKind
	Generation uint64

	// PageLoaded
	Page MessagePage

	// LiveMessage
	Live Message

	// SendResult
	TempID string

	Err error
}

// RoomView owns the merged, deduplicated, time-ordered message view for one
// room-viewing session. It is single-owner state: one view per displayed
// room, no cross-session sharing.
type RoomView struct {
	roomID      int
	matchWindow time.Duration
	generation  uint64

	entries []ViewMessage
	ids     map[int]bool

	loading      bool
	hasMore      bool
	oldestLoaded *time.Time
	loadErr      error

	now       func() time.Time
	newTempID func() string
}

// RoomViewOption customizes a RoomView.
type RoomViewOption func(*RoomView)

// WithMatchWindow overrides the optimistic matching window.
func WithMatchWindow(window time.Duration) RoomViewOption {
	return func(v *RoomView) {
		if window > 0 {
			v.matchWindow = window
		}
	}
}

// WithClock overrides the staging clock. Used by tests.
func WithClock(now func() time.Time) RoomViewOption {
	return func(v *RoomView) { v.now = now }
}

// NewRoomView creates a view for a room.
func NewRoomView(roomID int, opts ...RoomViewOption) *RoomView {
	v := &RoomView{
		roomID:      roomID,
		matchWindow: DefaultMatchWindow,
		ids:         make(map[int]bool),
		hasMore:     true,
		now:         time.Now,
		newTempID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RoomID returns the room this view is bound to.
func (v *RoomView) RoomID() int {
	return v.roomID
}

// Generation returns the token in-flight operations must tag their events
// with. Events carrying an older generation are discarded by Apply.
func (v *RoomView) Generation() uint64 {
	return v.generation
}

// Switch rebinds the view to another room, discarding all state. In-flight
// results for the previous room resolve against a stale generation and are
// dropped rather than applied to the new room.
func (v *RoomView) Switch(roomID int) uint64 {
	v.roomID = roomID
	v.generation++
	v.entries = nil
	v.ids = make(map[int]bool)
	v.loading = false
	v.hasMore = true
	v.oldestLoaded = nil
	v.loadErr = nil
	return v.generation
}

// BeginLoadOlder reserves a history fetch and returns the cursor to use. It
// refuses while another fetch is pending (rapid "load more" must not race)
// and once the oldest page was reached.
func (v *RoomView) BeginLoadOlder() (cursor *time.Time, generation uint64, ok bool) {
	if v.loading || !v.hasMore {
		return nil, 0, false
	}
	v.loading = true
	return v.oldestLoaded, v.generation, true
}

// Loading reports whether a history fetch is pending.
func (v *RoomView) Loading() bool {
	return v.loading
}

// HasMore reports whether older pages may remain.
func (v *RoomView) HasMore() bool {
	return v.hasMore
}

// LoadError returns the last history fetch error, cleared by the next
// successful page.
func (v *RoomView) LoadError() error {
	return v.loadErr
}

// StageSend synchronously appends an optimistic entry so the message is
// visible before any network round trip, and returns it. The caller submits
// the content to the store and feeds the outcome back as a SendResult event.
func (v *RoomView) StageSend(senderID int, role Role, content string) (ViewMessage, error) {
	if content == "" {
		return ViewMessage{}, ErrEmptyContent
	}

	entry := ViewMessage{
		Message: Message{
			RoomID:     v.roomID,
			SenderID:   senderID,
			SenderRole: role,
			Content:    content,
			CreatedAt:  v.now(),
		},
		TempID:  v.newTempID(),
		Status:  StatusSending,
		Pending: true,
	}
	v.entries = append(v.entries, entry)
	v.resort()
	return entry, nil
}

// Apply feeds one event through the reducer.
func (v *RoomView) Apply(ev ViewEvent) {
	if ev.Generation != v.generation {
		return
	}

	switch ev.Kind {
	case PageLoaded:
		v.applyPage(ev)
	case LiveMessage:
		v.applyLive(ev.Live)
	case SendResult:
		v.applySendResult(ev)
	}
}

func (v *RoomView) applyPage(ev ViewEvent) {
	v.loading = false
	if ev.Err != nil {
		v.loadErr = ev.Err
		return
	}
	v.loadErr = nil
	v.hasMore = ev.Page.HasMore

	for _, msg := range ev.Page.Messages {
		if msg.ID != 0 && v.ids[msg.ID] {
			continue
		}
		v.insertPersisted(msg)
	}
	// Pages arrive newest first, so the last entry is the oldest loaded.
	if n := len(ev.Page.Messages); n > 0 {
		oldest := ev.Page.Messages[n-1].CreatedAt
		if v.oldestLoaded == nil || oldest.Before(*v.oldestLoaded) {
			v.oldestLoaded = &oldest
		}
	}
	v.resort()
}

func (v *RoomView) applyLive(live Message) {
	// Try to retire a pending optimistic entry first. First match wins and
	// at most one entry is matched per event; a match adopts the confirmed
	// identity instead of inserting a duplicate row.
	for i := range v.entries {
		e := &v.entries[i]
		if !e.Pending || e.Status == StatusFailed {
			continue
		}
		if e.SenderID != live.SenderID || e.Content != live.Content {
			continue
		}
		delta := live.CreatedAt.Sub(e.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta >= v.matchWindow {
			continue
		}

		e.Message = live
		e.TempID = ""
		e.Status = StatusSent
		e.Pending = false
		v.ids[live.ID] = true
		v.resort()
		return
	}

	// Unmatched confirmed message: plain insert, guarded against redundant
	// delivery of the same event.
	if live.ID != 0 && v.ids[live.ID] {
		return
	}
	v.insertPersisted(live)
	v.resort()
}

func (v *RoomView) applySendResult(ev ViewEvent) {
	for i := range v.entries {
		e := &v.entries[i]
		if e.TempID == "" || e.TempID != ev.TempID {
			continue
		}
		if ev.Err != nil {
			// The entry stays visible with a failure marker. No automatic
			// retry; the user composes again.
			e.Status = StatusFailed
			e.Pending = false
			return
		}
		// Persisted, but identity adoption waits for the live confirmation:
		// the subscription event may already have retired this entry, or it
		// may still be on the wire, and both orderings must converge.
		e.Status = StatusSent
		return
	}
}

func (v *RoomView) insertPersisted(msg Message) {
	if msg.ID != 0 {
		v.ids[msg.ID] = true
	}
	v.entries = append(v.entries, ViewMessage{
		Message: msg,
		Status:  StatusSent,
	})
}

// resort keeps the merged view ascending by creation time. The sort is
// stable, so entries with equal timestamps keep arrival order.
func (v *RoomView) resort() {
	sort.SliceStable(v.entries, func(i, j int) bool {
		return v.entries[i].CreatedAt.Before(v.entries[j].CreatedAt)
	})
}

// Messages returns the merged view in render order.
func (v *RoomView) Messages() []ViewMessage {
	out := make([]ViewMessage, len(v.entries))
	copy(out, v.entries)
	return out
}
