package client

import (
	"sync"

	"artel/internal/models"
)

// Mirror is the receiver-side view of a room's files: an off-screen
// cache of saved content, at most one open file with a visible buffer,
// and the local drafts not yet saved to the server.
//
// The conflict strategy is avoidance, not merging: a remote
// file:changed lands in the visible buffer only when there is no
// outstanding draft for that file; otherwise only the off-screen copy
// moves and the draft stays untouched.
type Mirror struct {
	openFileID string
	visible    string
	cache      map[string]models.FileRecord
	drafts     map[string]string

	mu sync.Mutex
}

func NewMirror() *Mirror {
	return &Mirror{
		cache:  make(map[string]models.FileRecord),
		drafts: make(map[string]string),
	}
}

// Load replaces the cached file list with a fresh files:list snapshot.
// Drafts survive a reload; the visible buffer follows the draft if one
// exists, the snapshot otherwise.
func (m *Mirror) Load(files []models.FileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache = make(map[string]models.FileRecord, len(files))
	for _, f := range files {
		m.cache[f.ID] = f
	}
	if m.openFileID == "" {
		return
	}
	if draft, ok := m.drafts[m.openFileID]; ok {
		m.visible = draft
	} else if f, ok := m.cache[m.openFileID]; ok {
		m.visible = f.Content
	}
}

// Open makes fileID the visible file. The buffer shows the draft when
// one is pending, the cached saved content otherwise.
func (m *Mirror) Open(fileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openFileID = fileID
	if draft, ok := m.drafts[fileID]; ok {
		m.visible = draft
		return
	}
	m.visible = m.cache[fileID].Content
}

// Edit records local typing: the draft for fileID, and the visible
// buffer when that file is open.
func (m *Mirror) Edit(fileID, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.drafts[fileID] = content
	if m.openFileID == fileID {
		m.visible = content
	}
}

// Saved clears the draft after a durable save was acked; the saved
// content becomes the cached value.
func (m *Mirror) Saved(fileID, content string, updatedAt int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.drafts, fileID)
	f := m.cache[fileID]
	f.ID = fileID
	f.Content = content
	f.UpdatedAt = updatedAt
	m.cache[fileID] = f
	if m.openFileID == fileID {
		m.visible = content
	}
}

// ApplyRemote handles an incoming file:changed broadcast (durable or
// transient). The visible buffer updates only when the file is open and
// has no pending draft.
func (m *Mirror) ApplyRemote(fileID, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.cache[fileID]
	f.ID = fileID
	f.Content = content
	m.cache[fileID] = f

	if m.openFileID != fileID {
		return
	}
	if _, dirty := m.drafts[fileID]; dirty {
		return
	}
	m.visible = content
}

// Visible returns the open file id and its buffer content.
func (m *Mirror) Visible() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openFileID, m.visible
}

// Cached returns the off-screen saved-content copy for fileID.
func (m *Mirror) Cached(fileID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[fileID].Content
}

// HasDraft reports whether fileID has an outstanding unsaved edit.
func (m *Mirror) HasDraft(fileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.drafts[fileID]
	return ok
}
