package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"artel/internal/models"

	"github.com/gorilla/websocket"
)

const callTimeout = 5 * time.Second

// Client is a headless participant: it speaks the full event catalog
// over a websocket and maintains the receiver-side state machines (file
// mirror, remote cursors) a real editor client would.
type Client struct {
	conn *websocket.Conn

	Mirror  *Mirror
	Cursors *Cursors
	// Pushes receives server pushes after local state is updated. It is
	// buffered; consumers that fall behind lose frames, like any other
	// ephemeral channel in the protocol.
	Pushes chan models.ServerEvent

	identity models.Identity
	roomID   string

	seq     atomic.Int64
	pending map[int64]chan models.ServerEvent

	writeMu sync.Mutex
	mu      sync.Mutex
	done    chan struct{}
}

// Dial connects to a server's /ws endpoint, e.g. ws://host:port/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		Mirror:  NewMirror(),
		Cursors: NewCursors(),
		Pushes:  make(chan models.ServerEvent, 64),
		pending: make(map[int64]chan models.ServerEvent),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Identity() models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var ev models.ServerEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			c.failPending()
			return
		}

		if ev.Type == models.ServerAck {
			c.mu.Lock()
			ch, ok := c.pending[ev.ReplyTo]
			delete(c.pending, ev.ReplyTo)
			c.mu.Unlock()
			if ok {
				ch <- ev
			}
			continue
		}

		c.applyPush(ev)
		select {
		case c.Pushes <- ev:
		default:
		}
	}
}

func (c *Client) applyPush(ev models.ServerEvent) {
	switch ev.Type {
	case models.ServerFileChanged:
		c.Mirror.ApplyRemote(ev.FileID, ev.Content)
	case models.ServerCursorUpdate:
		if ev.Cursor != nil {
			c.Cursors.Observe(*ev.Cursor)
		}
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for seq, ch := range c.pending {
		close(ch)
		delete(c.pending, seq)
	}
}

func (c *Client) emit(ev models.ClientEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(ev)
}

func (c *Client) call(ev models.ClientEvent) (models.ServerEvent, error) {
	seq := c.seq.Add(1)
	ev.Seq = seq

	ch := make(chan models.ServerEvent, 1)
	c.mu.Lock()
	c.pending[seq] = ch
	c.mu.Unlock()

	if err := c.emit(ev); err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return models.ServerEvent{}, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return models.ServerEvent{}, errors.New("connection closed")
		}
		if resp.Error != "" {
			return models.ServerEvent{}, errors.New(resp.Error)
		}
		return resp, nil
	case <-time.After(callTimeout):
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return models.ServerEvent{}, errors.New("call timed out")
	}
}

// Authenticate upserts the session. An empty userID asks the server to
// mint one; passing a previous id reattaches that identity.
func (c *Client) Authenticate(username, userID string) (models.Identity, error) {
	resp, err := c.call(models.ClientEvent{
		Type:     models.ClientAuthenticate,
		Username: username,
		UserID:   userID,
	})
	if err != nil {
		return models.Identity{}, err
	}
	if resp.Identity == nil {
		return models.Identity{}, errors.New("malformed authenticate ack")
	}
	c.mu.Lock()
	c.identity = *resp.Identity
	c.mu.Unlock()
	return *resp.Identity, nil
}

func (c *Client) CreateRoom(name string) (models.RoomSummary, error) {
	resp, err := c.call(models.ClientEvent{Type: models.ClientRoomCreate, Name: name})
	if err != nil {
		return models.RoomSummary{}, err
	}
	if resp.Room == nil {
		return models.RoomSummary{}, errors.New("malformed room:create ack")
	}
	return *resp.Room, nil
}

func (c *Client) Join(roomID string) (models.RoomSummary, error) {
	resp, err := c.call(models.ClientEvent{Type: models.ClientRoomJoin, RoomID: roomID})
	if err != nil {
		return models.RoomSummary{}, err
	}
	if resp.Room == nil {
		return models.RoomSummary{}, errors.New("malformed room:join ack")
	}
	c.mu.Lock()
	c.roomID = resp.Room.ID
	c.mu.Unlock()
	return *resp.Room, nil
}

func (c *Client) Leave() error {
	_, err := c.call(models.ClientEvent{Type: models.ClientRoomLeave})
	c.mu.Lock()
	c.roomID = ""
	c.mu.Unlock()
	return err
}

// RefreshFiles pulls the file snapshot and loads it into the mirror.
func (c *Client) RefreshFiles(roomID string) ([]models.FileRecord, error) {
	resp, err := c.call(models.ClientEvent{Type: models.ClientFilesList, RoomID: roomID})
	if err != nil {
		return nil, err
	}
	c.Mirror.Load(resp.Files)
	return resp.Files, nil
}

func (c *Client) Folders(roomID string) ([]models.FolderRecord, error) {
	resp, err := c.call(models.ClientEvent{Type: models.ClientFoldersList, RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return resp.Folders, nil
}

func (c *Client) CreateFile(roomID, name, folderID string) (models.FileRecord, error) {
	resp, err := c.call(models.ClientEvent{
		Type:     models.ClientFileCreate,
		RoomID:   roomID,
		Name:     name,
		FolderID: folderID,
	})
	if err != nil {
		return models.FileRecord{}, err
	}
	if resp.File == nil {
		return models.FileRecord{}, errors.New("malformed file:create ack")
	}
	return *resp.File, nil
}

func (c *Client) RenameFile(roomID, fileID, name string) (models.FileRecord, error) {
	resp, err := c.call(models.ClientEvent{
		Type:   models.ClientFileRename,
		RoomID: roomID,
		FileID: fileID,
		Name:   name,
	})
	if err != nil {
		return models.FileRecord{}, err
	}
	if resp.File == nil {
		return models.FileRecord{}, errors.New("malformed file:rename ack")
	}
	return *resp.File, nil
}

func (c *Client) DeleteFile(roomID, fileID string) error {
	_, err := c.call(models.ClientEvent{Type: models.ClientFileDelete, RoomID: roomID, FileID: fileID})
	return err
}

// SaveFile performs the durable save and clears the local draft on ack.
func (c *Client) SaveFile(roomID, fileID, content string) error {
	resp, err := c.call(models.ClientEvent{
		Type:    models.ClientFileUpdate,
		RoomID:  roomID,
		FileID:  fileID,
		Content: content,
	})
	if err != nil {
		return err
	}
	updatedAt := int64(0)
	if resp.File != nil {
		updatedAt = resp.File.UpdatedAt
	}
	c.Mirror.Saved(fileID, content, updatedAt)
	return nil
}

// TransientEdit records the keystroke locally and broadcasts it to the
// rest of the room. Fire-and-forget; the sender is expected to debounce.
func (c *Client) TransientEdit(roomID, fileID, content string) error {
	c.Mirror.Edit(fileID, content)
	return c.emit(models.ClientEvent{
		Type:    models.ClientFileEditing,
		RoomID:  roomID,
		FileID:  fileID,
		Content: content,
	})
}

func (c *Client) CreateFolder(roomID, name, parentID string) (models.FolderRecord, error) {
	resp, err := c.call(models.ClientEvent{
		Type:     models.ClientFolderCreate,
		RoomID:   roomID,
		Name:     name,
		ParentID: parentID,
	})
	if err != nil {
		return models.FolderRecord{}, err
	}
	if resp.Folder == nil {
		return models.FolderRecord{}, errors.New("malformed folder:create ack")
	}
	return *resp.Folder, nil
}

func (c *Client) RenameFolder(roomID, folderID, name string) (models.FolderRecord, error) {
	resp, err := c.call(models.ClientEvent{
		Type:     models.ClientFolderRename,
		RoomID:   roomID,
		FolderID: folderID,
		Name:     name,
	})
	if err != nil {
		return models.FolderRecord{}, err
	}
	if resp.Folder == nil {
		return models.FolderRecord{}, errors.New("malformed folder:rename ack")
	}
	return *resp.Folder, nil
}

func (c *Client) DeleteFolder(roomID, folderID string) error {
	_, err := c.call(models.ClientEvent{Type: models.ClientFolderDelete, RoomID: roomID, FolderID: folderID})
	return err
}

func (c *Client) BatchImport(roomID string, entries []models.BatchEntry) error {
	_, err := c.call(models.ClientEvent{Type: models.ClientBatchUpdate, RoomID: roomID, Files: entries})
	return err
}

func (c *Client) ChatHistory(roomID string) ([]models.ChatMessage, error) {
	resp, err := c.call(models.ClientEvent{Type: models.ClientChatHistory, RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) SendChat(roomID, text string) (models.ChatMessage, error) {
	resp, err := c.call(models.ClientEvent{Type: models.ClientChatSend, RoomID: roomID, Text: text})
	if err != nil {
		return models.ChatMessage{}, err
	}
	if resp.Message == nil {
		return models.ChatMessage{}, errors.New("malformed chat:send ack")
	}
	return *resp.Message, nil
}

func (c *Client) ClearChat(roomID string) error {
	_, err := c.call(models.ClientEvent{Type: models.ClientChatClear, RoomID: roomID})
	return err
}

func (c *Client) SendCursor(roomID, fileID string, selection json.RawMessage) error {
	return c.emit(models.ClientEvent{
		Type:      models.ClientCursorUpdate,
		RoomID:    roomID,
		FileID:    fileID,
		Selection: selection,
	})
}

func (c *Client) SendWhiteboard(roomID string, ev models.WhiteboardEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return c.emit(models.ClientEvent{Type: models.ClientWhiteboard, RoomID: roomID, Board: &ev})
}

func (c *Client) Signal(roomID, toUserID string, data json.RawMessage) error {
	return c.emit(models.ClientEvent{
		Type:     models.ClientSignal,
		RoomID:   roomID,
		ToUserID: toUserID,
		Data:     data,
	})
}

// WaitPush blocks until a push of the given type arrives or the timeout
// expires. Other pushes received meanwhile are consumed.
func (c *Client) WaitPush(eventType models.ServerEventType, timeout time.Duration) (models.ServerEvent, error) {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-c.Pushes:
			if ev.Type == eventType {
				return ev, nil
			}
		case <-c.done:
			return models.ServerEvent{}, errors.New("connection closed")
		case <-deadline:
			return models.ServerEvent{}, fmt.Errorf("timed out waiting for %s", eventType)
		}
	}
}
