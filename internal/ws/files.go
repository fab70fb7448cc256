package ws

import (
	"artel/internal/models"
	"artel/internal/room"
)

// Structural and durable-save operations. Each validates the room exists
// (join is the only operation that auto-creates), mutates the aggregate
// under its lock, and schedules a best-effort persist. The coarse
// files:updated / folders:updated signals are broadcast by the aggregate
// itself, in processing order.

func (h *Hub) lookupRoom(roomID string) (*room.Room, error) {
	r, ok := h.directory.Get(roomID)
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	return r, nil
}

// FilesList returns the full file snapshot for room entry and
// structure-changed refreshes.
func (h *Hub) FilesList(roomID string) ([]models.FileRecord, error) {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return nil, err
	}
	return r.Files(), nil
}

func (h *Hub) FoldersList(roomID string) ([]models.FolderRecord, error) {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return nil, err
	}
	return r.Folders(), nil
}

func (h *Hub) FileCreate(roomID, name, folderID, language string) (models.FileRecord, error) {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return models.FileRecord{}, err
	}
	f := r.CreateFile(name, folderID, language)
	h.directory.Persist(r)
	return f, nil
}

func (h *Hub) FileRename(roomID, fileID, name string) (models.FileRecord, error) {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return models.FileRecord{}, err
	}
	f, err := r.RenameFile(fileID, name)
	if err != nil {
		return models.FileRecord{}, err
	}
	h.directory.Persist(r)
	return f, nil
}

func (h *Hub) FileDelete(roomID, fileID string) error {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return err
	}
	if err := r.DeleteFile(fileID); err != nil {
		return err
	}
	h.directory.Persist(r)
	return nil
}

// FileSave is the durable last-writer-wins save. The aggregate
// broadcasts file:changed to all members, sender included.
func (h *Hub) FileSave(roomID, fileID, content string) (models.FileRecord, error) {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return models.FileRecord{}, err
	}
	f, err := r.SaveFile(fileID, content)
	if err != nil {
		return models.FileRecord{}, err
	}
	h.directory.Persist(r)
	return f, nil
}

func (h *Hub) FolderCreate(roomID, name, parentID string) (models.FolderRecord, error) {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return models.FolderRecord{}, err
	}
	f := r.CreateFolder(name, parentID)
	h.directory.Persist(r)
	return f, nil
}

func (h *Hub) FolderRename(roomID, folderID, name string) (models.FolderRecord, error) {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return models.FolderRecord{}, err
	}
	f, err := r.RenameFolder(folderID, name)
	if err != nil {
		return models.FolderRecord{}, err
	}
	h.directory.Persist(r)
	return f, nil
}

func (h *Hub) FolderDelete(roomID, folderID string) error {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return err
	}
	if folderID == "" {
		return models.ErrFolderNotFound
	}
	if err := r.DeleteFolder(folderID); err != nil {
		return err
	}
	h.directory.Persist(r)
	return nil
}

// BatchImport merges an uploaded project tree into the room.
func (h *Hub) BatchImport(roomID string, entries []models.BatchEntry) error {
	r, err := h.lookupRoom(roomID)
	if err != nil {
		return err
	}
	if err := r.BatchImport(entries); err != nil {
		return err
	}
	h.directory.Persist(r)
	return nil
}

// RoomCreate makes a room with an explicit name, for the room:create
// event and the REST boundary.
func (h *Hub) RoomCreate(roomID, name, createdBy string) models.RoomSummary {
	if name == "" {
		name = "New Room"
	}
	return h.directory.GetOrCreate(roomID, name, createdBy).Summary()
}
