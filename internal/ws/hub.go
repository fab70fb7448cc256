package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"artel/internal/content"
	"artel/internal/models"
	"artel/internal/room"
)

const sendBuffer = 256

// Session is the server-side identity and room binding of one live
// connection. A userID may appear in several sessions at once
// (multi-tab); the room aggregate refcounts those.
type Session struct {
	ConnID   string
	UserID   string
	Username string
	RoomID   string

	send chan models.ServerEvent
}

type roomDirectory interface {
	Get(roomID string) (*room.Room, bool)
	GetOrCreate(roomID, name, createdBy string) *room.Room
	Persist(r *room.Room)
}

type identityService interface {
	Authenticate(username, userID string) models.Identity
	ResolveNames(userIDs []string) map[string]string
}

// Hub is the session registry and the router for all room-scoped events.
type Hub struct {
	directory roomDirectory
	auth      identityService

	// Map of connID -> Session
	sessions map[string]*Session

	mu sync.RWMutex
}

func NewHub(dir roomDirectory, auth identityService) *Hub {
	return &Hub{
		directory: dir,
		auth:      auth,
		sessions:  make(map[string]*Session),
	}
}

// Authenticate upserts the session for connID. Repeated calls with the
// same connection update identity in place and keep the same channel.
func (h *Hub) Authenticate(connID, username, userID string) (models.Identity, <-chan models.ServerEvent) {
	identity := h.auth.Authenticate(content.Sanitize(username), userID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[connID]; ok {
		s.UserID = identity.UserID
		s.Username = identity.Username
		return identity, s.send
	}

	s := &Session{
		ConnID:   connID,
		UserID:   identity.UserID,
		Username: identity.Username,
		send:     make(chan models.ServerEvent, sendBuffer),
	}
	h.sessions[connID] = s
	return identity, s.send
}

func (h *Hub) session(connID string) (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Join binds the connection to roomID, creating the room when absent.
// A connection already bound to another room leaves it first, so the
// participants invariant stays exact.
func (h *Hub) Join(connID, roomID string) (models.RoomSummary, error) {
	s, ok := h.session(connID)
	if !ok {
		return models.RoomSummary{}, models.ErrNotAuthenticated
	}
	if roomID == "" {
		return models.RoomSummary{}, fmt.Errorf("%w: missing roomId", models.ErrValidation)
	}
	if s.RoomID == roomID {
		return h.directory.GetOrCreate(roomID, "Untitled Room", s.UserID).Summary(), nil
	}
	if s.RoomID != "" {
		h.Leave(connID)
	}

	r := h.directory.GetOrCreate(roomID, "Untitled Room", s.UserID)

	h.mu.Lock()
	if live, ok := h.sessions[connID]; ok {
		live.RoomID = roomID
	}
	h.mu.Unlock()

	r.AddSession(s.UserID)
	h.directory.Persist(r)
	h.publishPresence(roomID)

	return r.Summary(), nil
}

// Leave unbinds the connection from its room; no-op when not in one.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok || s.RoomID == "" {
		h.mu.Unlock()
		return
	}
	roomID, userID := s.RoomID, s.UserID
	s.RoomID = ""
	h.mu.Unlock()

	r, ok := h.directory.Get(roomID)
	if !ok {
		return
	}
	r.RemoveSession(userID)
	h.directory.Persist(r)
	h.publishPresence(roomID)
}

// Disconnect is the exactly-once teardown for a connection: implicit
// leave plus session destruction, graceful or abrupt.
func (h *Hub) Disconnect(connID string) {
	h.Leave(connID)

	h.mu.Lock()
	s, ok := h.sessions[connID]
	if ok {
		delete(h.sessions, connID)
		close(s.send)
	}
	h.mu.Unlock()
}

// publishPresence broadcasts the full participant snapshot, with
// usernames resolved best-effort (raw id on lookup failure).
func (h *Hub) publishPresence(roomID string) {
	participants := []models.Participant{}
	if r, ok := h.directory.Get(roomID); ok {
		ids := r.Participants()
		names := h.auth.ResolveNames(ids)
		for _, id := range ids {
			name, ok := names[id]
			if !ok {
				name = id
			}
			participants = append(participants, models.Participant{UserID: id, Username: name})
		}
	}
	h.BroadcastRoom(roomID, models.ServerEvent{
		Type:         models.ServerPresenceUpdate,
		Participants: participants,
	})
}

// BroadcastRoom fans an event out to every connection bound to roomID.
// Sends are non-blocking: a receiver with a full buffer misses the frame.
func (h *Hub) BroadcastRoom(roomID string, ev models.ServerEvent) {
	h.broadcast(roomID, "", ev)
}

func (h *Hub) broadcast(roomID, excludeConnID string, ev models.ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.sessions {
		if s.RoomID != roomID || s.ConnID == excludeConnID {
			continue
		}
		select {
		case s.send <- ev:
		default:
			// Slow consumer; drop rather than stall the room.
		}
	}
}

// boundRoom returns the aggregate for an operation that requires an
// authenticated session bound to roomID.
func (h *Hub) boundRoom(connID, roomID string) (Session, *room.Room, error) {
	s, ok := h.session(connID)
	if !ok {
		return Session{}, nil, models.ErrNotAuthenticated
	}
	r, ok := h.directory.Get(roomID)
	if !ok {
		return Session{}, nil, models.ErrRoomNotFound
	}
	return s, r, nil
}

// ChatHistory returns the server-ordered message log.
func (h *Hub) ChatHistory(roomID string) ([]models.ChatMessage, error) {
	r, ok := h.directory.Get(roomID)
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	return r.Messages(), nil
}

// ChatSend appends a message with server-assigned id, order and
// timestamp, and broadcasts it to every member including the sender.
func (h *Hub) ChatSend(connID, roomID, text string) (models.ChatMessage, error) {
	s, r, err := h.boundRoom(connID, roomID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	if s.RoomID != roomID {
		return models.ChatMessage{}, models.ErrNotAuthenticated
	}

	text = content.Truncate(content.Sanitize(text), content.MaxMessageLen)
	html := content.RenderMarkdown(text)
	msg := r.AppendMessage(s.UserID, s.Username, text, html)
	h.directory.Persist(r)
	return msg, nil
}

// ChatClear wipes the room's log and signals every member to reset.
func (h *Hub) ChatClear(connID, roomID string) error {
	s, r, err := h.boundRoom(connID, roomID)
	if err != nil {
		return err
	}
	if s.RoomID != roomID {
		return models.ErrNotAuthenticated
	}
	r.ClearMessages()
	h.directory.Persist(r)
	return nil
}

// TransientEdit relays in-progress content to everyone else in the room.
// Never persisted, never acked; invalid frames are silently dropped.
func (h *Hub) TransientEdit(connID, roomID, fileID, body string) {
	if fileID == "" {
		return
	}
	if _, ok := h.directory.Get(roomID); !ok {
		return
	}
	h.broadcast(roomID, connID, models.ServerEvent{
		Type:    models.ServerFileChanged,
		FileID:  fileID,
		Content: body,
	})
}

// CursorUpdate relays an ephemeral cursor position to everyone else.
func (h *Hub) CursorUpdate(connID, roomID, fileID string, selection json.RawMessage) {
	s, ok := h.session(connID)
	if !ok || roomID == "" {
		return
	}
	h.broadcast(roomID, connID, models.ServerEvent{
		Type: models.ServerCursorUpdate,
		Cursor: &models.CursorUpdate{
			UserID:    s.UserID,
			Username:  s.Username,
			FileID:    fileID,
			Selection: selection,
		},
	})
}

// Whiteboard relays a drawing primitive to everyone else. The server
// keeps no board state, so late joiners start from an empty board.
func (h *Hub) Whiteboard(connID, roomID string, ev *models.WhiteboardEvent) {
	if ev == nil || ev.Validate() != nil {
		return
	}
	if _, ok := h.directory.Get(roomID); !ok {
		return
	}
	h.broadcast(roomID, connID, models.ServerEvent{
		Type:  models.ServerWhiteboard,
		Board: ev,
	})
}

// Signal forwards a call-negotiation payload to every session of
// toUserID bound to the room. Multi-tab users get one copy per tab.
// No match means a silent drop.
func (h *Hub) Signal(connID, roomID, toUserID string, data json.RawMessage) {
	from, ok := h.session(connID)
	if !ok {
		return
	}

	ev := models.ServerEvent{
		Type:       models.ServerSignal,
		FromUserID: from.UserID,
		Data:       data,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		if s.RoomID != roomID || s.UserID != toUserID {
			continue
		}
		select {
		case s.send <- ev:
		default:
		}
	}
}
