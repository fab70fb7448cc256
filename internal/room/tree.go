package room

import (
	"fmt"
	"sort"
	"strings"

	"artel/internal/models"

	"github.com/google/uuid"
)

// Files returns the current file list, sorted by name.
func (r *Room) Files() []models.FileRecord {
	r.mux.Lock()
	defer r.mux.Unlock()

	files := make([]models.FileRecord, 0, len(r.files))
	for _, f := range r.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// Folders returns the current folder list, sorted by name.
func (r *Room) Folders() []models.FolderRecord {
	r.mux.Lock()
	defer r.mux.Unlock()

	folders := make([]models.FolderRecord, 0, len(r.folders))
	for _, f := range r.folders {
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders
}

func (r *Room) CreateFile(name, folderID, language string) models.FileRecord {
	r.mux.Lock()
	defer r.mux.Unlock()

	if name == "" {
		name = "file.js"
	}
	if language == "" {
		language = InferLanguage(name)
	}
	f := models.FileRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Language:  language,
		FolderID:  folderID,
		UpdatedAt: r.now().UnixMilli(),
	}
	r.files[f.ID] = f
	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{Type: models.ServerFilesUpdated})
	return f
}

func (r *Room) RenameFile(fileID, name string) (models.FileRecord, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if fileID == "" || name == "" {
		return models.FileRecord{}, fmt.Errorf("%w: missing fileId or name", models.ErrValidation)
	}
	f, ok := r.files[fileID]
	if !ok {
		return models.FileRecord{}, models.ErrFileNotFound
	}
	f.Name = name
	f.Language = InferLanguage(name)
	f.UpdatedAt = r.nextTimestampLocked(f.UpdatedAt)
	r.files[fileID] = f
	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{Type: models.ServerFilesUpdated})
	return f, nil
}

func (r *Room) DeleteFile(fileID string) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if _, ok := r.files[fileID]; !ok {
		return models.ErrFileNotFound
	}
	delete(r.files, fileID)
	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{Type: models.ServerFilesUpdated})
	return nil
}

// SaveFile overwrites the durable content (last-writer-wins) and
// broadcasts file:changed to every member, sender included, so duplicate
// sessions of the same user converge.
func (r *Room) SaveFile(fileID, content string) (models.FileRecord, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	f, ok := r.files[fileID]
	if !ok {
		return models.FileRecord{}, models.ErrFileNotFound
	}
	f.Content = content
	// UpdatedAt advances on every save, even when the content is identical.
	f.UpdatedAt = r.nextTimestampLocked(f.UpdatedAt)
	r.files[fileID] = f
	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{
		Type:      models.ServerFileChanged,
		FileID:    f.ID,
		Content:   f.Content,
		UpdatedAt: f.UpdatedAt,
	})
	return f, nil
}

func (r *Room) CreateFolder(name, parentID string) models.FolderRecord {
	r.mux.Lock()
	defer r.mux.Unlock()

	if name == "" {
		name = "Folder"
	}
	f := models.FolderRecord{
		ID:       uuid.NewString(),
		Name:     name,
		ParentID: parentID,
	}
	r.folders[f.ID] = f
	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{Type: models.ServerFoldersUpdated})
	return f
}

func (r *Room) RenameFolder(folderID, name string) (models.FolderRecord, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if folderID == "" || name == "" {
		return models.FolderRecord{}, fmt.Errorf("%w: missing folderId or name", models.ErrValidation)
	}
	f, ok := r.folders[folderID]
	if !ok {
		return models.FolderRecord{}, models.ErrFolderNotFound
	}
	f.Name = name
	r.folders[folderID] = f
	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{Type: models.ServerFoldersUpdated})
	return f, nil
}

// DeleteFolder removes the folder, the full transitive closure of its
// descendant folders, and every file living in that closure.
func (r *Room) DeleteFolder(folderID string) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if _, ok := r.folders[folderID]; !ok {
		return models.ErrFolderNotFound
	}

	doomed := map[string]bool{folderID: true}
	for changed := true; changed; {
		changed = false
		for _, f := range r.folders {
			if f.ParentID != "" && doomed[f.ParentID] && !doomed[f.ID] {
				doomed[f.ID] = true
				changed = true
			}
		}
	}

	for id := range doomed {
		delete(r.folders, id)
	}
	for id, f := range r.files {
		if f.FolderID != "" && doomed[f.FolderID] {
			delete(r.files, id)
		}
	}

	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{Type: models.ServerFilesUpdated})
	r.broadcastLocked(models.ServerEvent{Type: models.ServerFoldersUpdated})
	return nil
}

// BatchImport merges {path, content} entries into the tree. Folders are
// matched by (name, parent) and files by (name, folder), so importing the
// same archive twice does not duplicate structure. Runs atomically with
// respect to other structural operations.
func (r *Room) BatchImport(entries []models.BatchEntry) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if entries == nil {
		return fmt.Errorf("%w: invalid payload", models.ErrValidation)
	}

	for _, entry := range entries {
		normalized := strings.ReplaceAll(entry.Path, `\`, "/")
		var parts []string
		for _, p := range strings.Split(normalized, "/") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		fileName := parts[len(parts)-1]
		parentID := ""
		for _, part := range parts[:len(parts)-1] {
			parentID = r.findOrCreateFolderLocked(part, parentID)
		}

		if existing, ok := r.findFileLocked(fileName, parentID); ok {
			existing.Content = entry.Content
			existing.UpdatedAt = r.nextTimestampLocked(existing.UpdatedAt)
			r.files[existing.ID] = existing
			continue
		}
		f := models.FileRecord{
			ID:        uuid.NewString(),
			Name:      fileName,
			Content:   entry.Content,
			Language:  InferLanguage(fileName),
			FolderID:  parentID,
			UpdatedAt: r.now().UnixMilli(),
		}
		r.files[f.ID] = f
	}

	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{Type: models.ServerFilesUpdated})
	r.broadcastLocked(models.ServerEvent{Type: models.ServerFoldersUpdated})
	return nil
}

func (r *Room) findOrCreateFolderLocked(name, parentID string) string {
	for _, f := range r.folders {
		if f.Name == name && f.ParentID == parentID {
			return f.ID
		}
	}
	f := models.FolderRecord{
		ID:       uuid.NewString(),
		Name:     name,
		ParentID: parentID,
	}
	r.folders[f.ID] = f
	return f.ID
}

func (r *Room) findFileLocked(name, folderID string) (models.FileRecord, bool) {
	for _, f := range r.files {
		if f.Name == name && f.FolderID == folderID {
			return f, true
		}
	}
	return models.FileRecord{}, false
}

// nextTimestampLocked returns the current time, bumped past prev so the
// timestamp visibly advances even for back-to-back updates.
func (r *Room) nextTimestampLocked(prev int64) int64 {
	ts := r.now().UnixMilli()
	if ts <= prev {
		ts = prev + 1
	}
	return ts
}
