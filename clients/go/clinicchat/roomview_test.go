package clinicchat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func persisted(id int, sender int, role Role, content string, at time.Time) Message {
	return Message{ID: id, RoomID: 1, SenderID: sender, SenderRole: role, Content: content, CreatedAt: at}
}

func TestRoomViewDeduplicatesAcrossSources(t *testing.T) {
	v := NewRoomView(1)

	m1 := persisted(1, 2, RoleAdmin, "hi", t0)
	m2 := persisted(2, 2, RoleAdmin, "there", t0.Add(time.Second))
	m3 := persisted(3, 2, RoleAdmin, "again", t0.Add(2*time.Second))

	_, gen, ok := v.BeginLoadOlder()
	require.True(t, ok)
	v.Apply(ViewEvent{Kind: PageLoaded, Generation: gen, Page: MessagePage{Messages: []Message{m2, m1}, HasMore: true}})

	// Redundant live delivery and an overlapping page must not duplicate.
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: m3})
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: m3})
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: m2})

	_, gen, ok = v.BeginLoadOlder()
	require.True(t, ok)
	v.Apply(ViewEvent{Kind: PageLoaded, Generation: gen, Page: MessagePage{Messages: []Message{m2, m1}}})

	msgs := v.Messages()
	require.Len(t, msgs, 3)
	seen := map[int]int{}
	for _, m := range msgs {
		seen[m.ID]++
	}
	for id, n := range seen {
		assert.Equalf(t, 1, n, "message %d rendered %d times", id, n)
	}
}

func TestRoomViewOrderingNonDecreasing(t *testing.T) {
	v := NewRoomView(1)
	gen := v.Generation()

	// Deliver out of order across sources.
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: persisted(5, 2, RoleAdmin, "e", t0.Add(5*time.Second))})
	v.Apply(ViewEvent{Kind: PageLoaded, Generation: gen, Page: MessagePage{Messages: []Message{
		persisted(3, 2, RoleAdmin, "c", t0.Add(3 * time.Second)),
		persisted(1, 2, RoleAdmin, "a", t0),
	}}})
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: persisted(4, 2, RoleAdmin, "d", t0.Add(4*time.Second))})

	msgs := v.Messages()
	require.Len(t, msgs, 4)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt), "render order regressed at %d", i)
	}
}

func TestRoomViewOptimisticMatchWithinWindow(t *testing.T) {
	v := NewRoomView(1, WithClock(fixedClock(t0)))
	gen := v.Generation()

	staged, err := v.StageSend(7, RolePatient, "hello")
	require.NoError(t, err)
	require.Equal(t, StatusSending, staged.Status)
	require.True(t, staged.Pending)

	confirmed := persisted(42, 7, RolePatient, "hello", t0.Add(2*time.Second))
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: confirmed})

	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 42, msgs[0].ID)
	assert.Equal(t, StatusSent, msgs[0].Status)
	assert.False(t, msgs[0].Pending)
	assert.Empty(t, msgs[0].TempID)
}

func TestRoomViewOptimisticNoMatchOutsideWindow(t *testing.T) {
	v := NewRoomView(1, WithClock(fixedClock(t0)))
	gen := v.Generation()

	_, err := v.StageSend(7, RolePatient, "hello")
	require.NoError(t, err)

	// Same sender and content but too far apart: both rows stay.
	confirmed := persisted(42, 7, RolePatient, "hello", t0.Add(DefaultMatchWindow))
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: confirmed})

	require.Len(t, v.Messages(), 2)
}

func TestRoomViewOptimisticNoMatchDifferentContent(t *testing.T) {
	v := NewRoomView(1, WithClock(fixedClock(t0)))
	gen := v.Generation()

	_, err := v.StageSend(7, RolePatient, "hello")
	require.NoError(t, err)

	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: persisted(42, 7, RolePatient, "hello!", t0.Add(time.Second))})

	require.Len(t, v.Messages(), 2)
}

func TestRoomViewMatchesAtMostOneEntryPerEvent(t *testing.T) {
	v := NewRoomView(1, WithClock(fixedClock(t0)))
	gen := v.Generation()

	_, err := v.StageSend(7, RolePatient, "hello")
	require.NoError(t, err)
	_, err = v.StageSend(7, RolePatient, "hello")
	require.NoError(t, err)

	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: persisted(42, 7, RolePatient, "hello", t0.Add(time.Second))})

	msgs := v.Messages()
	require.Len(t, msgs, 2)

	confirmedCount := 0
	pendingCount := 0
	for _, m := range msgs {
		if m.ID == 42 {
			confirmedCount++
		}
		if m.Pending {
			pendingCount++
		}
	}
	assert.Equal(t, 1, confirmedCount)
	assert.Equal(t, 1, pendingCount)
}

func TestRoomViewSendConfirmRaceLiveFirst(t *testing.T) {
	v := NewRoomView(1, WithClock(fixedClock(t0)))
	gen := v.Generation()

	staged, err := v.StageSend(7, RolePatient, "hello")
	require.NoError(t, err)

	// The subscription delivers the durable row before the insert call
	// resolves locally.
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: persisted(42, 7, RolePatient, "hello", t0.Add(2*time.Second))})
	v.Apply(ViewEvent{Kind: SendResult, Generation: gen, TempID: staged.TempID})

	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 42, msgs[0].ID)
	assert.Equal(t, StatusSent, msgs[0].Status)
}

func TestRoomViewSendConfirmRaceAckFirst(t *testing.T) {
	v := NewRoomView(1, WithClock(fixedClock(t0)))
	gen := v.Generation()

	staged, err := v.StageSend(7, RolePatient, "hello")
	require.NoError(t, err)

	v.Apply(ViewEvent{Kind: SendResult, Generation: gen, TempID: staged.TempID})

	msgs := v.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, StatusSent, msgs[0].Status)
	require.True(t, msgs[0].Pending)

	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: persisted(42, 7, RolePatient, "hello", t0.Add(2*time.Second))})

	msgs = v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 42, msgs[0].ID)
	assert.False(t, msgs[0].Pending)
}

func TestRoomViewFailedSendRetained(t *testing.T) {
	v := NewRoomView(1, WithClock(fixedClock(t0)))
	gen := v.Generation()

	staged, err := v.StageSend(7, RolePatient, "hello")
	require.NoError(t, err)

	v.Apply(ViewEvent{Kind: SendResult, Generation: gen, TempID: staged.TempID, Err: assert.AnError})

	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, StatusFailed, msgs[0].Status)
	assert.Equal(t, "hello", msgs[0].Content)

	// A failed entry is no longer eligible for live matching.
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: persisted(42, 7, RolePatient, "hello", t0.Add(time.Second))})
	msgs = v.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, StatusFailed, msgs[0].Status)
}

func TestRoomViewEmptyContentRejectedBeforeStaging(t *testing.T) {
	v := NewRoomView(1)

	_, err := v.StageSend(7, RolePatient, "")
	require.ErrorIs(t, err, ErrEmptyContent)
	require.Empty(t, v.Messages())
}

func TestRoomViewPaginationTerminates(t *testing.T) {
	v := NewRoomView(1)

	const total = 45
	const pageSize = 20

	all := make([]Message, total)
	for i := range all {
		// all[0] is the newest message.
		all[i] = persisted(total-i, 2, RoleAdmin, "m", t0.Add(-time.Duration(i)*time.Minute))
	}

	fetch := func(before *time.Time) MessagePage {
		page := []Message{}
		for _, m := range all {
			if before != nil && !m.CreatedAt.Before(*before) {
				continue
			}
			page = append(page, m)
			if len(page) == pageSize {
				break
			}
		}
		return MessagePage{Messages: page, HasMore: len(page) == pageSize}
	}

	calls := 0
	for {
		cursor, gen, ok := v.BeginLoadOlder()
		if !ok {
			break
		}
		calls++
		v.Apply(ViewEvent{Kind: PageLoaded, Generation: gen, Page: fetch(cursor)})
	}

	assert.Equal(t, 3, calls)
	assert.Len(t, v.Messages(), total)
	assert.False(t, v.HasMore())
}

func TestRoomViewLoadOlderGuardsReentry(t *testing.T) {
	v := NewRoomView(1)

	_, gen, ok := v.BeginLoadOlder()
	require.True(t, ok)

	_, _, ok = v.BeginLoadOlder()
	require.False(t, ok, "second load must be refused while the first is pending")

	v.Apply(ViewEvent{Kind: PageLoaded, Generation: gen, Page: MessagePage{HasMore: true}})
	_, _, ok = v.BeginLoadOlder()
	require.True(t, ok)
}

func TestRoomViewPageErrorKeepsStateAndClearsLoading(t *testing.T) {
	v := NewRoomView(1)

	_, gen, ok := v.BeginLoadOlder()
	require.True(t, ok)
	v.Apply(ViewEvent{Kind: PageLoaded, Generation: gen, Err: assert.AnError})

	require.ErrorIs(t, v.LoadError(), assert.AnError)
	require.False(t, v.Loading())
	require.True(t, v.HasMore())
}

func TestRoomViewSwitchDiscardsStaleResults(t *testing.T) {
	v := NewRoomView(1)

	cursor, staleGen, ok := v.BeginLoadOlder()
	require.True(t, ok)
	require.Nil(t, cursor)

	v.Switch(2)

	// The room A fetch resolves after the switch; its payload must not leak
	// into room B's view.
	v.Apply(ViewEvent{Kind: PageLoaded, Generation: staleGen, Page: MessagePage{Messages: []Message{
		persisted(1, 2, RoleAdmin, "stale", t0),
	}}})

	assert.Empty(t, v.Messages())
	assert.False(t, v.Loading())
	assert.Equal(t, 2, v.RoomID())
}

func TestRoomViewConfigurableMatchWindow(t *testing.T) {
	v := NewRoomView(1, WithClock(fixedClock(t0)), WithMatchWindow(30*time.Second))
	gen := v.Generation()

	_, err := v.StageSend(7, RolePatient, "hello")
	require.NoError(t, err)

	// 20s apart: outside the default window, inside the configured one.
	v.Apply(ViewEvent{Kind: LiveMessage, Generation: gen, Live: persisted(42, 7, RolePatient, "hello", t0.Add(20*time.Second))})

	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 42, msgs[0].ID)
}
