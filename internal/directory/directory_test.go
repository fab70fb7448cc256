package directory

import (
	"errors"
	"sync"
	"testing"

	"artel/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	rooms   map[string]models.RoomRecord
	loads   int
	saves   int
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[string]models.RoomRecord)}
}

func (s *memStore) LoadRoom(id string) (models.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return models.RoomRecord{}, s.loadErr
	}
	rec, ok := s.rooms[id]
	if !ok {
		return models.RoomRecord{}, models.ErrRoomNotFound
	}
	return rec, nil
}

func (s *memStore) SaveRoom(rec models.RoomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.rooms[rec.ID] = rec
	return nil
}

func TestDirectory_CreateAndPersist(t *testing.T) {
	store := newMemStore()
	d := New(Config{Store: store})

	r := d.GetOrCreate("r1", "demo", "u1")
	if r == nil {
		t.Fatal("GetOrCreate returned nil")
	}
	if sum := r.Summary(); sum.Name != "demo" || sum.CreatedBy != "u1" {
		t.Errorf("unexpected summary: %+v", sum)
	}

	d.Wait()
	store.mu.Lock()
	rec, ok := store.rooms["r1"]
	store.mu.Unlock()
	if !ok {
		t.Fatal("fresh room not written to the store")
	}
	if rec.Name != "demo" {
		t.Errorf("unexpected persisted record: %+v", rec)
	}

	// Second access hits the cache, same instance.
	if again := d.GetOrCreate("r1", "ignored", "u2"); again != r {
		t.Error("expected the cached aggregate on second access")
	}
}

func TestDirectory_Hydrate(t *testing.T) {
	store := newMemStore()
	store.rooms["r1"] = models.RoomRecord{
		ID:   "r1",
		Name: "persisted",
		Files: []models.FileRecord{
			{ID: "f1", Name: "main.py", Content: "print(1)", Language: "python"},
		},
	}
	d := New(Config{Store: store})

	if _, ok := d.Get("r1"); ok {
		t.Fatal("Get must not hydrate")
	}

	r := d.GetOrCreate("r1", "fallback name", "u1")
	if r.Summary().Name != "persisted" {
		t.Errorf("expected hydration from the store, got %+v", r.Summary())
	}
	if !r.HasFile("f1") {
		t.Error("file tree not hydrated")
	}

	if cached, ok := d.Get("r1"); !ok || cached != r {
		t.Error("hydrated room must be cached")
	}
}

func TestDirectory_ConcurrentFirstAccess(t *testing.T) {
	store := newMemStore()
	d := New(Config{Store: store})

	const n = 32
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.GetOrCreate("r1", "demo", "u1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent first access produced distinct aggregates")
		}
	}
}

func TestDirectory_StoreFailuresSwallowed(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("disk on fire")
	store.saveErr = errors.New("disk still on fire")
	d := New(Config{Store: store})

	// A broken store must not block the live path.
	r := d.GetOrCreate("r1", "demo", "u1")
	if r == nil {
		t.Fatal("GetOrCreate must succeed despite store errors")
	}
	d.Persist(r)
	d.Wait()

	if _, ok := d.Get("r1"); !ok {
		t.Error("in-memory aggregate must remain authoritative")
	}
}

func TestDirectory_BroadcastWiring(t *testing.T) {
	store := newMemStore()
	var gotRoom string
	var gotType models.ServerEventType
	d := New(Config{Store: store, Broadcast: func(roomID string, ev models.ServerEvent) {
		gotRoom = roomID
		gotType = ev.Type
	}})

	r := d.GetOrCreate("r1", "demo", "u1")
	r.AppendMessage("u1", "alice", "hello", "")

	if gotRoom != "r1" || gotType != models.ServerChatNew {
		t.Errorf("aggregate broadcast not routed: room=%q type=%q", gotRoom, gotType)
	}
}
