package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRoomNotFound     = errors.New("room not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrFolderNotFound   = errors.New("folder not found")
	ErrValidation       = errors.New("validation error")
)

// Identity is the result of authenticating a connection.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// User is a durable account record.
type User struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"createdAt"`
	LastActive   int64  `json:"lastActive"`
}

// FileRecord holds the single durable content value of a file.
// Transient edit broadcasts never touch Content; only an explicit save does.
type FileRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	Language  string `json:"language"`
	FolderID  string `json:"folderId,omitempty"`
	UpdatedAt int64  `json:"updatedAt"` // Unix milliseconds
}

// FolderRecord forms a tree via ParentID.
type FolderRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// ChatMessage is immutable once appended. Text is the sanitized plain
// text, HTML the rendered markdown body.
type ChatMessage struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	HTML      string `json:"html,omitempty"`
	CreatedAt int64  `json:"createdAt"` // Unix milliseconds
}

// RoomSummary is what join/create acks and the REST listing carry.
type RoomSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CreatedBy     string `json:"createdBy,omitempty"`
	CreatedByName string `json:"createdByName,omitempty"`
	CreatedAt     int64  `json:"createdAt,omitempty"`
	LastActivity  int64  `json:"lastActivity,omitempty"`
}

// RoomRecord is the persisted snapshot of a room aggregate.
type RoomRecord struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	CreatedBy    string         `json:"createdBy"`
	CreatedAt    int64          `json:"createdAt"`
	LastActivity int64          `json:"lastActivity"`
	Participants []string       `json:"participants"`
	Files        []FileRecord   `json:"files"`
	Folders      []FolderRecord `json:"folders"`
	Messages     []ChatMessage  `json:"messages"`
}

// Participant is one entry of a presence snapshot.
type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// CursorUpdate is an ephemeral cursor broadcast. Selection is opaque to
// the server (editor-specific ranges).
type CursorUpdate struct {
	UserID    string          `json:"userId"`
	Username  string          `json:"username"`
	FileID    string          `json:"fileId"`
	Selection json.RawMessage `json:"selection,omitempty"`
}

// BatchEntry is one file of a project import.
type BatchEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Point is a whiteboard coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type WhiteboardKind string

const (
	WhiteboardStroke WhiteboardKind = "stroke"
	WhiteboardShape  WhiteboardKind = "shape"
	WhiteboardText   WhiteboardKind = "text"
	WhiteboardDelete WhiteboardKind = "delete"
	WhiteboardUpdate WhiteboardKind = "update"
	WhiteboardClear  WhiteboardKind = "clear"
)

// WhiteboardEvent is a tagged variant of drawing primitives. The server
// relays them without holding any canonical board state; a late joiner
// starts with an empty board.
type WhiteboardEvent struct {
	Kind WhiteboardKind `json:"type"`

	// stroke
	From *Point `json:"from,omitempty"`
	To   *Point `json:"to,omitempty"`
	Mode string `json:"mode,omitempty"`

	// shape
	Shape string `json:"shape,omitempty"`
	Start *Point `json:"start,omitempty"`
	End   *Point `json:"end,omitempty"`

	// text
	Text string  `json:"text,omitempty"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`

	// stroke/shape/text
	Color string  `json:"color,omitempty"`
	Size  float64 `json:"size,omitempty"`

	// delete/update
	ID      string          `json:"id,omitempty"`
	Updates json.RawMessage `json:"updates,omitempty"`
}

// Validate checks the variant carries the fields its kind requires.
func (e *WhiteboardEvent) Validate() error {
	switch e.Kind {
	case WhiteboardStroke:
		if e.From == nil || e.To == nil {
			return fmt.Errorf("%w: stroke needs from and to", ErrValidation)
		}
	case WhiteboardShape:
		if e.Shape == "" || e.Start == nil || e.End == nil {
			return fmt.Errorf("%w: shape needs shape, start and end", ErrValidation)
		}
	case WhiteboardText:
		if e.Text == "" {
			return fmt.Errorf("%w: text event needs text", ErrValidation)
		}
	case WhiteboardDelete:
		if e.ID == "" {
			return fmt.Errorf("%w: delete needs id", ErrValidation)
		}
	case WhiteboardUpdate:
		if e.ID == "" || len(e.Updates) == 0 {
			return fmt.Errorf("%w: update needs id and updates", ErrValidation)
		}
	case WhiteboardClear:
	default:
		return fmt.Errorf("%w: unknown whiteboard event %q", ErrValidation, e.Kind)
	}
	return nil
}
