package clinicchat

import "context"

// RoomFetcher is the read side the room list depends on. *Client satisfies
// it.
type RoomFetcher interface {
	ListRooms(ctx context.Context, page, pageSize int) ([]RoomSummary, error)
	SearchRooms(ctx context.Context, queryText string) ([]RoomSummary, error)
}

// RoomList aggregates the room-list view: a paginated window over rooms
// ordered by latest activity, or a flat search result set. Any activity
// event invalidates the whole list; refresh refetches it rather than
// patching, which is deliberate given room counts stay small.
type RoomList struct {
	fetcher  RoomFetcher
	page     int
	pageSize int
	search   string

	rooms []RoomSummary
	stale bool
}

// NewRoomList creates an aggregator over the fetcher.
func NewRoomList(fetcher RoomFetcher, pageSize int) *RoomList {
	return &RoomList{
		fetcher:  fetcher,
		page:     1,
		pageSize: pageSize,
		stale:    true,
	}
}

// SetPage moves the pagination window.
func (l *RoomList) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	if page != l.page {
		l.page = page
		l.stale = true
	}
}

// SetSearch switches to search mode; an empty query returns to the
// paginated listing.
func (l *RoomList) SetSearch(queryText string) {
	if queryText != l.search {
		l.search = queryText
		l.stale = true
	}
}

// NotifyActivity marks the list stale in response to a lobby event.
func (l *RoomList) NotifyActivity(RoomActivity) {
	l.stale = true
}

// NeedsRefresh reports whether the cached rooms are stale.
func (l *RoomList) NeedsRefresh() bool {
	return l.stale
}

// Refresh refetches the list. A failed refresh keeps the previous rooms and
// leaves the list stale so the caller can retry explicitly.
func (l *RoomList) Refresh(ctx context.Context) error {
	var (
		rooms []RoomSummary
		err   error
	)
	if l.search != "" {
		rooms, err = l.fetcher.SearchRooms(ctx, l.search)
	} else {
		rooms, err = l.fetcher.ListRooms(ctx, l.page, l.pageSize)
	}
	if err != nil {
		return err
	}
	l.rooms = rooms
	l.stale = false
	return nil
}

// Rooms returns the current snapshot.
func (l *RoomList) Rooms() []RoomSummary {
	out := make([]RoomSummary, len(l.rooms))
	copy(out, l.rooms)
	return out
}
