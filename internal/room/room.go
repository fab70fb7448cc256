package room

import (
	"sort"
	"sync"
	"time"

	"artel/internal/models"

	"github.com/google/uuid"
)

// Room is the in-memory aggregate for one collaboration room. It is the
// authoritative copy while the process is alive; the durable store is a
// best-effort secondary.
//
// All mutations run under mux. Broadcast is invoked while the lock is
// held, so every member observes chat and structural signals in the
// room's processing order.
type Room struct {
	id        string
	name      string
	createdBy string
	createdAt int64

	lastActivity int64
	participants map[string]int // userID -> live session count
	files        map[string]models.FileRecord
	folders      map[string]models.FolderRecord
	messages     []models.ChatMessage

	// Broadcast delivers a push to every connection bound to the room.
	Broadcast func(ev models.ServerEvent)

	now func() time.Time
	mux sync.Mutex
}

type Config struct {
	ID        string
	Name      string
	CreatedBy string
	Broadcast func(ev models.ServerEvent)
}

func New(config Config) *Room {
	r := &Room{
		id:           config.ID,
		name:         config.Name,
		createdBy:    config.CreatedBy,
		participants: make(map[string]int),
		files:        make(map[string]models.FileRecord),
		folders:      make(map[string]models.FolderRecord),
		Broadcast:    config.Broadcast,
		now:          time.Now,
	}
	r.createdAt = r.now().UnixMilli()
	r.lastActivity = r.createdAt
	return r
}

// FromRecord rebuilds an aggregate from a persisted snapshot. Participants
// are intentionally not restored: membership is derived from live
// sessions, and a freshly hydrated room has none.
func FromRecord(rec models.RoomRecord, broadcast func(ev models.ServerEvent)) *Room {
	r := &Room{
		id:           rec.ID,
		name:         rec.Name,
		createdBy:    rec.CreatedBy,
		createdAt:    rec.CreatedAt,
		lastActivity: rec.LastActivity,
		participants: make(map[string]int),
		files:        make(map[string]models.FileRecord),
		folders:      make(map[string]models.FolderRecord),
		messages:     append([]models.ChatMessage(nil), rec.Messages...),
		Broadcast:    broadcast,
		now:          time.Now,
	}
	for _, f := range rec.Files {
		r.files[f.ID] = f
	}
	for _, f := range rec.Folders {
		r.folders[f.ID] = f
	}
	return r
}

func (r *Room) ID() string { return r.id }

func (r *Room) Summary() models.RoomSummary {
	r.mux.Lock()
	defer r.mux.Unlock()
	return models.RoomSummary{
		ID:           r.id,
		Name:         r.name,
		CreatedBy:    r.createdBy,
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
	}
}

// Snapshot returns a consistent copy for persistence.
func (r *Room) Snapshot() models.RoomRecord {
	r.mux.Lock()
	defer r.mux.Unlock()

	rec := models.RoomRecord{
		ID:           r.id,
		Name:         r.name,
		CreatedBy:    r.createdBy,
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
		Participants: r.participantsLocked(),
		Files:        make([]models.FileRecord, 0, len(r.files)),
		Folders:      make([]models.FolderRecord, 0, len(r.folders)),
		Messages:     append([]models.ChatMessage(nil), r.messages...),
	}
	for _, f := range r.files {
		rec.Files = append(rec.Files, f)
	}
	for _, f := range r.folders {
		rec.Folders = append(rec.Folders, f)
	}
	sort.Slice(rec.Files, func(i, j int) bool { return rec.Files[i].Name < rec.Files[j].Name })
	sort.Slice(rec.Folders, func(i, j int) bool { return rec.Folders[i].Name < rec.Folders[j].Name })
	return rec
}

// AddSession binds one more live session of userID to the room. It
// reports whether membership changed (first session of that user).
func (r *Room) AddSession(userID string) bool {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.participants[userID]++
	r.touchLocked()
	return r.participants[userID] == 1
}

// RemoveSession unbinds one live session. Membership changes only when
// the last session of that user goes away.
func (r *Room) RemoveSession(userID string) bool {
	r.mux.Lock()
	defer r.mux.Unlock()

	n, ok := r.participants[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(r.participants, userID)
		return true
	}
	r.participants[userID] = n - 1
	return false
}

// Participants returns the set of userIDs with at least one live session.
func (r *Room) Participants() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.participantsLocked()
}

func (r *Room) participantsLocked() []string {
	ids := make([]string, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasFile reports whether fileID currently exists in the tree.
func (r *Room) HasFile(fileID string) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	_, ok := r.files[fileID]
	return ok
}

// Messages returns a copy of the append-only chat log.
func (r *Room) Messages() []models.ChatMessage {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]models.ChatMessage(nil), r.messages...)
}

// AppendMessage assigns id and timestamp, appends and broadcasts. The
// caller is responsible for sanitizing and truncating the text.
func (r *Room) AppendMessage(userID, username, text, html string) models.ChatMessage {
	r.mux.Lock()
	defer r.mux.Unlock()

	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Text:      text,
		HTML:      html,
		CreatedAt: r.now().UnixMilli(),
	}
	r.messages = append(r.messages, msg)
	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{Type: models.ServerChatNew, Message: &msg})
	return msg
}

// ClearMessages irreversibly wipes the log and signals every member to
// reset local chat state.
func (r *Room) ClearMessages() {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.messages = nil
	r.touchLocked()
	r.broadcastLocked(models.ServerEvent{Type: models.ServerChatCleared})
}

func (r *Room) touchLocked() {
	if ts := r.now().UnixMilli(); ts > r.lastActivity {
		r.lastActivity = ts
	}
}

func (r *Room) broadcastLocked(ev models.ServerEvent) {
	if r.Broadcast != nil {
		r.Broadcast(ev)
	}
}
