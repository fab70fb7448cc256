package directory

import (
	"errors"
	"log/slog"
	"sync"

	"artel/internal/models"
	"artel/internal/room"

	"github.com/c-pro/geche"
	"golang.org/x/sync/singleflight"
)

// Store is the durable side of the cache-aside pair. It is read on cache
// miss and written best-effort; it never blocks the real-time path.
type Store interface {
	LoadRoom(id string) (models.RoomRecord, error)
	SaveRoom(rec models.RoomRecord) error
}

// Directory is the room id -> live aggregate map. The cache is pluggable
// so an eviction policy can be swapped in; the default MapCache never
// evicts.
type Directory struct {
	cache     geche.Geche[string, *room.Room]
	store     Store
	broadcast func(roomID string, ev models.ServerEvent)

	group singleflight.Group
	wg    sync.WaitGroup
}

type Config struct {
	Store Store
	// Cache is optional; nil means a plain MapCache (no eviction).
	Cache geche.Geche[string, *room.Room]
	// Broadcast fans a push out to every connection bound to roomID.
	Broadcast func(roomID string, ev models.ServerEvent)
}

func New(config Config) *Directory {
	cache := config.Cache
	if cache == nil {
		cache = geche.NewMapCache[string, *room.Room]()
	}
	return &Directory{
		cache:     cache,
		store:     config.Store,
		broadcast: config.Broadcast,
	}
}

// Get returns the cached aggregate, without hydrating.
func (d *Directory) Get(roomID string) (*room.Room, bool) {
	r, err := d.cache.Get(roomID)
	if err != nil {
		return nil, false
	}
	return r, true
}

// GetOrCreate returns the cached room, hydrates it from the store, or
// creates a fresh one. First access per room id is serialized through
// singleflight so concurrent joins cannot produce duplicate aggregates
// or duplicate durable records. Store failures are logged and swallowed;
// the in-memory result is authoritative either way.
func (d *Directory) GetOrCreate(roomID, name, createdBy string) *room.Room {
	if r, ok := d.Get(roomID); ok {
		return r
	}

	v, _, _ := d.group.Do(roomID, func() (any, error) {
		if r, ok := d.Get(roomID); ok {
			return r, nil
		}

		bcast := func(ev models.ServerEvent) {
			if d.broadcast != nil {
				d.broadcast(roomID, ev)
			}
		}

		rec, err := d.store.LoadRoom(roomID)
		switch {
		case err == nil:
			r := room.FromRecord(rec, bcast)
			d.cache.Set(roomID, r)
			return r, nil
		case !errors.Is(err, models.ErrRoomNotFound):
			slog.Warn("error loading room from store", "room_id", roomID, "error", err)
		}

		r := room.New(room.Config{
			ID:        roomID,
			Name:      name,
			CreatedBy: createdBy,
			Broadcast: bcast,
		})
		d.cache.Set(roomID, r)
		d.Persist(r)
		return r, nil
	})

	return v.(*room.Room)
}

// Persist schedules a best-effort durable write of the room's current
// snapshot. It runs to completion even if the triggering session is
// already gone.
func (d *Directory) Persist(r *room.Room) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		rec := r.Snapshot()
		if err := d.store.SaveRoom(rec); err != nil {
			slog.Warn("could not persist room", "room_id", rec.ID, "error", err)
		}
	}()
}

// Wait blocks until all in-flight persists finish. Used on shutdown and
// in tests.
func (d *Directory) Wait() {
	d.wg.Wait()
}
