package clinicchat

import "time"

// UnreadTracker derives a room's unread count for one viewer role from the
// messages it has observed and a read watermark. The count is recomputed on
// demand, never maintained incrementally.
type UnreadTracker struct {
	viewerRole Role
	watermark  *time.Time
	observed   []Message
}

// NewUnreadTracker creates a tracker for the given viewer.
func NewUnreadTracker(viewerRole Role) *UnreadTracker {
	return &UnreadTracker{viewerRole: viewerRole}
}

// Observe records messages the view has learned about, from any source.
func (t *UnreadTracker) Observe(msgs ...Message) {
	t.observed = append(t.observed, msgs...)
}

// MarkRead pins the watermark to the latest message currently known, not to
// wall-clock time, so messages that arrive afterwards still count as unread.
// Returns the pinned time, nil when no messages are known yet.
func (t *UnreadTracker) MarkRead() *time.Time {
	var latest *time.Time
	for i := range t.observed {
		created := t.observed[i].CreatedAt
		if latest == nil || created.After(*latest) {
			latest = &created
		}
	}
	if latest != nil {
		t.watermark = latest
	}
	return t.watermark
}

// Initialized reports whether a watermark has ever been set. Count returns 0
// either way, so callers that care about "never opened" versus "caught up"
// must check this first.
func (t *UnreadTracker) Initialized() bool {
	return t.watermark != nil
}

// Count returns the number of observed messages authored by the opposite
// role strictly newer than the watermark. Without a watermark it reports 0.
func (t *UnreadTracker) Count() int {
	if t.watermark == nil {
		return 0
	}
	count := 0
	for i := range t.observed {
		msg := &t.observed[i]
		if msg.SenderRole == t.viewerRole.Opposite() && msg.CreatedAt.After(*t.watermark) {
			count++
		}
	}
	return count
}
