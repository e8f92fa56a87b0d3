package clinicchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a clinic chat API client. All reads return canonical types; see
// types.go for the normalization step.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the given service base URL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchMessagePage retrieves one page of room history: up to the server page
// size of messages strictly older than the cursor, newest first. A nil cursor
// returns the most recent page. HasMore false signals the last page.
func (c *Client) FetchMessagePage(ctx context.Context, roomID int, before *time.Time) (MessagePage, error) {
	query := url.Values{}
	if before != nil {
		query.Set("before", before.Format(time.RFC3339Nano))
	}

	var resp struct {
		Messages []wireMessage `json:"messages"`
		HasMore  bool          `json:"has_more"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%d/messages", roomID), query, nil, &resp); err != nil {
		return MessagePage{}, err
	}

	page := MessagePage{HasMore: resp.HasMore, Messages: make([]Message, 0, len(resp.Messages))}
	for _, w := range resp.Messages {
		page.Messages = append(page.Messages, normalizeMessage(w))
	}
	return page, nil
}

// InsertMessage persists a message and returns the stored row with its
// server-assigned id and timestamp.
func (c *Client) InsertMessage(ctx context.Context, roomID int, content string) (Message, error) {
	var w wireMessage
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/messages", roomID), nil, map[string]string{"content": content}, &w)
	if err != nil {
		return Message{}, err
	}
	return normalizeMessage(w), nil
}

// ListRooms returns one page of room summaries ordered by latest activity.
func (c *Client) ListRooms(ctx context.Context, page, pageSize int) ([]RoomSummary, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	var resp struct {
		Rooms []wireRoomSummary `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms", query, nil, &resp); err != nil {
		return nil, err
	}

	rooms := make([]RoomSummary, 0, len(resp.Rooms))
	for _, w := range resp.Rooms {
		rooms = append(rooms, normalizeRoomSummary(w))
	}
	return rooms, nil
}

// SearchRooms filters rooms by patient display name, unpaginated.
func (c *Client) SearchRooms(ctx context.Context, queryText string) ([]RoomSummary, error) {
	query := url.Values{}
	query.Set("q", queryText)

	var resp struct {
		Rooms []wireRoomSummary `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms/search", query, nil, &resp); err != nil {
		return nil, err
	}

	rooms := make([]RoomSummary, 0, len(resp.Rooms))
	for _, w := range resp.Rooms {
		rooms = append(rooms, normalizeRoomSummary(w))
	}
	return rooms, nil
}

// StartRoom creates or returns the caller's room for a category.
func (c *Client) StartRoom(ctx context.Context, category, patientName string) (int, error) {
	var resp struct {
		RoomID int `json:"room_id"`
	}
	err := c.do(ctx, http.MethodPost, "/rooms/start", nil, map[string]string{
		"category":     category,
		"patient_name": patientName,
	}, &resp)
	return resp.RoomID, err
}

// MarkRead pins the caller's read watermark to the newest message currently
// in the room.
func (c *Client) MarkRead(ctx context.Context, roomID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/read", roomID), nil, nil, nil)
}

// UnreadCount returns the caller's derived unread count for a room.
func (c *Client) UnreadCount(ctx context.Context, roomID int) (int, error) {
	var resp struct {
		Unread int `json:"unread"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%d/unread", roomID), nil, nil, &resp)
	return resp.Unread, err
}
