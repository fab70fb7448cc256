package models

import "encoding/json"

type ClientEventType string

const (
	ClientAuthenticate ClientEventType = "authenticate"
	ClientRoomCreate   ClientEventType = "room:create"
	ClientRoomJoin     ClientEventType = "room:join"
	ClientRoomLeave    ClientEventType = "room:leave"
	ClientFilesList    ClientEventType = "files:list"
	ClientFoldersList  ClientEventType = "folders:list"
	ClientFileCreate   ClientEventType = "file:create"
	ClientFileRename   ClientEventType = "file:rename"
	ClientFileDelete   ClientEventType = "file:delete"
	ClientFileUpdate   ClientEventType = "file:update"
	ClientFileEditing  ClientEventType = "file:editing"
	ClientFolderCreate ClientEventType = "folder:create"
	ClientFolderRename ClientEventType = "folder:rename"
	ClientFolderDelete ClientEventType = "folder:delete"
	ClientBatchUpdate  ClientEventType = "project:batchUpdate"
	ClientChatHistory  ClientEventType = "chat:history"
	ClientChatSend     ClientEventType = "chat:send"
	ClientChatClear    ClientEventType = "chat:clear"
	ClientCursorUpdate ClientEventType = "cursor:update"
	ClientWhiteboard   ClientEventType = "whiteboard:event"
	ClientSignal       ClientEventType = "webrtc:signal"
)

// ClientEvent is one frame from client to server. Seq correlates the ack
// for request/response events; broadcast-only events carry no Seq and get
// no ack.
type ClientEvent struct {
	Seq  int64           `json:"seq,omitempty"`
	Type ClientEventType `json:"type"`

	RoomID   string `json:"roomId,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`

	Name     string `json:"name,omitempty"`
	FileID   string `json:"fileId,omitempty"`
	FolderID string `json:"folderId,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content,omitempty"`
	Text     string `json:"text,omitempty"`

	Files     []BatchEntry     `json:"files,omitempty"`
	Selection json.RawMessage  `json:"selection,omitempty"`
	Board     *WhiteboardEvent `json:"event,omitempty"`
	ToUserID  string           `json:"toUserId,omitempty"`
	Data      json.RawMessage  `json:"data,omitempty"`
}

type ServerEventType string

const (
	ServerAck            ServerEventType = "ack"
	ServerPresenceUpdate ServerEventType = "presence:update"
	ServerChatNew        ServerEventType = "chat:new"
	ServerChatCleared    ServerEventType = "chat:cleared"
	ServerFileChanged    ServerEventType = "file:changed"
	ServerFilesUpdated   ServerEventType = "files:updated"
	ServerFoldersUpdated ServerEventType = "folders:updated"
	ServerCursorUpdate   ServerEventType = "cursor:update"
	ServerWhiteboard     ServerEventType = "whiteboard:event"
	ServerSignal         ServerEventType = "webrtc:signal"
)

// ServerEvent is one frame from server to client: either an ack
// (ReplyTo echoes the request Seq) or a room-scoped push.
type ServerEvent struct {
	Type    ServerEventType `json:"type"`
	ReplyTo int64           `json:"replyTo,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`

	Identity     *Identity        `json:"identity,omitempty"`
	Room         *RoomSummary     `json:"room,omitempty"`
	Files        []FileRecord     `json:"files,omitempty"`
	Folders      []FolderRecord   `json:"folders,omitempty"`
	File         *FileRecord      `json:"file,omitempty"`
	Folder       *FolderRecord    `json:"folder,omitempty"`
	Messages     []ChatMessage    `json:"messages,omitempty"`
	Message      *ChatMessage     `json:"message,omitempty"`
	Participants []Participant    `json:"participants,omitempty"`
	Cursor       *CursorUpdate    `json:"cursor,omitempty"`
	Board        *WhiteboardEvent `json:"event,omitempty"`

	FileID    string `json:"fileId,omitempty"`
	Content   string `json:"content,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`

	FromUserID string          `json:"fromUserId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}
