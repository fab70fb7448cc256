package storage

import (
	"encoding"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBUser struct {
	UserID       string `msgpack:"userId"`
	Username     string `msgpack:"username"`
	PasswordHash string `msgpack:"passwordHash"`
	CreatedAt    int64  `msgpack:"createdAt"`
	LastActive   int64  `msgpack:"lastActive"`
}

func (u *DBUser) Key() []byte {
	return []byte(u.UserID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

type DBRoom struct {
	ID           string        `msgpack:"id"`
	Name         string        `msgpack:"name"`
	CreatedBy    string        `msgpack:"createdBy"`
	CreatedAt    int64         `msgpack:"createdAt"`
	LastActivity int64         `msgpack:"lastActivity"`
	Participants []string      `msgpack:"participants"`
	Files        []DBFile      `msgpack:"files"`
	Folders      []DBFolder    `msgpack:"folders"`
	Messages     []DBChatEntry `msgpack:"messages"`
}

type DBFile struct {
	ID        string `msgpack:"id"`
	Name      string `msgpack:"name"`
	Content   string `msgpack:"content"`
	Language  string `msgpack:"language"`
	FolderID  string `msgpack:"folderId"`
	UpdatedAt int64  `msgpack:"updatedAt"`
}

type DBFolder struct {
	ID       string `msgpack:"id"`
	Name     string `msgpack:"name"`
	ParentID string `msgpack:"parentId"`
}

type DBChatEntry struct {
	ID        string `msgpack:"id"`
	UserID    string `msgpack:"userId"`
	Username  string `msgpack:"username"`
	Text      string `msgpack:"text"`
	HTML      string `msgpack:"html"`
	CreatedAt int64  `msgpack:"createdAt"`
}

func (r *DBRoom) Key() []byte {
	return []byte(r.ID)
}

func (r *DBRoom) MarshalBinary() (data []byte, err error) {
	type alias DBRoom
	return msgpack.Marshal((*alias)(r))
}

func (r *DBRoom) UnmarshalBinary(data []byte) error {
	type alias DBRoom
	return msgpack.Unmarshal(data, (*alias)(r))
}
