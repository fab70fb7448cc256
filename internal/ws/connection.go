package ws

import (
	"context"
	"errors"
	"sync"

	"artel/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

// Connection pumps one websocket. A read goroutine feeds fromClient; the
// main loop is the single writer, interleaving acks with hub pushes, so
// every frame a client sees left the server in processing order.
type Connection struct {
	ws         wsConnection
	hub        *Hub
	connID     string
	fromClient chan models.ClientEvent
	fromServer <-chan models.ServerEvent
	errorCh    chan error
}

func NewConnection(hub *Hub, ws wsConnection, connID string) *Connection {
	return &Connection{
		ws:         ws,
		hub:        hub,
		connID:     connID,
		fromClient: make(chan models.ClientEvent),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Disconnect(c.connID)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpEvents(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpEvents(ctx context.Context) error {
	for {
		var ev models.ClientEvent
		if err := c.ws.ReadJSON(&ev); err != nil {
			return err
		}
		select {
		case c.fromClient <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		// fromServer is nil until the connection authenticates; a nil
		// channel never fires.
		select {
		case ev := <-c.fromClient:
			if err := c.processClientEvent(ev); err != nil {
				return err
			}
		case ev, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Connection) processClientEvent(ev models.ClientEvent) error {
	switch ev.Type {
	case models.ClientAuthenticate:
		identity, serverCh := c.hub.Authenticate(c.connID, ev.Username, ev.UserID)
		c.fromServer = serverCh
		return c.ack(ev.Seq, models.ServerEvent{Identity: &identity})

	case models.ClientRoomCreate:
		s, ok := c.hub.session(c.connID)
		if !ok {
			return c.ackErr(ev.Seq, models.ErrNotAuthenticated)
		}
		summary := c.hub.RoomCreate(newRoomID(), ev.Name, s.UserID)
		return c.ack(ev.Seq, models.ServerEvent{Room: &summary})

	case models.ClientRoomJoin:
		summary, err := c.hub.Join(c.connID, ev.RoomID)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{Room: &summary})

	case models.ClientRoomLeave:
		c.hub.Leave(c.connID)
		return c.ack(ev.Seq, models.ServerEvent{})

	case models.ClientFilesList:
		files, err := c.hub.FilesList(ev.RoomID)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{Files: files})

	case models.ClientFoldersList:
		folders, err := c.hub.FoldersList(ev.RoomID)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{Folders: folders})

	case models.ClientFileCreate:
		f, err := c.hub.FileCreate(ev.RoomID, ev.Name, ev.FolderID, ev.Language)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{File: &f})

	case models.ClientFileRename:
		f, err := c.hub.FileRename(ev.RoomID, ev.FileID, ev.Name)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{File: &f})

	case models.ClientFileDelete:
		if err := c.hub.FileDelete(ev.RoomID, ev.FileID); err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{})

	case models.ClientFileUpdate:
		f, err := c.hub.FileSave(ev.RoomID, ev.FileID, ev.Content)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{File: &f})

	case models.ClientFileEditing:
		c.hub.TransientEdit(c.connID, ev.RoomID, ev.FileID, ev.Content)

	case models.ClientFolderCreate:
		f, err := c.hub.FolderCreate(ev.RoomID, ev.Name, ev.ParentID)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{Folder: &f})

	case models.ClientFolderRename:
		f, err := c.hub.FolderRename(ev.RoomID, ev.FolderID, ev.Name)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{Folder: &f})

	case models.ClientFolderDelete:
		if err := c.hub.FolderDelete(ev.RoomID, ev.FolderID); err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{})

	case models.ClientBatchUpdate:
		if err := c.hub.BatchImport(ev.RoomID, ev.Files); err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{})

	case models.ClientChatHistory:
		messages, err := c.hub.ChatHistory(ev.RoomID)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{Messages: messages})

	case models.ClientChatSend:
		msg, err := c.hub.ChatSend(c.connID, ev.RoomID, ev.Text)
		if err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{Message: &msg})

	case models.ClientChatClear:
		if err := c.hub.ChatClear(c.connID, ev.RoomID); err != nil {
			return c.ackErr(ev.Seq, err)
		}
		return c.ack(ev.Seq, models.ServerEvent{})

	case models.ClientCursorUpdate:
		c.hub.CursorUpdate(c.connID, ev.RoomID, ev.FileID, ev.Selection)

	case models.ClientWhiteboard:
		c.hub.Whiteboard(c.connID, ev.RoomID, ev.Board)

	case models.ClientSignal:
		c.hub.Signal(c.connID, ev.RoomID, ev.ToUserID, ev.Data)
	}

	return nil
}

func (c *Connection) ack(seq int64, ev models.ServerEvent) error {
	if seq == 0 {
		return nil
	}
	ev.Type = models.ServerAck
	ev.ReplyTo = seq
	ev.OK = true
	return c.ws.WriteJSON(ev)
}

func (c *Connection) ackErr(seq int64, err error) error {
	if seq == 0 {
		return nil
	}
	return c.ws.WriteJSON(models.ServerEvent{
		Type:    models.ServerAck,
		ReplyTo: seq,
		Error:   err.Error(),
	})
}
