package storage

import (
	"fmt"
	"sort"
	"time"

	"artel/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketRooms = []byte("rooms")
	bucketUsers = []byte("users")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRooms); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketUsers); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// SaveRoom persists a full room snapshot.
func (s *BboltStorage) SaveRoom(rec models.RoomRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRooms)
		dbRoom := roomToDB(rec)
		data, err := dbRoom.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal room: %w", err)
		}
		return b.Put(dbRoom.Key(), data)
	})
}

// LoadRoom returns the persisted snapshot for id, or models.ErrRoomNotFound.
func (s *BboltStorage) LoadRoom(id string) (models.RoomRecord, error) {
	var rec models.RoomRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRooms).Get([]byte(id))
		if data == nil {
			return models.ErrRoomNotFound
		}
		var dbRoom DBRoom
		if err := dbRoom.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("failed to unmarshal room: %w", err)
		}
		rec = roomFromDB(dbRoom)
		return nil
	})
	return rec, err
}

// ListRooms returns up to limit room summaries, most recently active first.
func (s *BboltStorage) ListRooms(limit int) ([]models.RoomSummary, error) {
	var rooms []models.RoomSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRooms)
		return b.ForEach(func(k, v []byte) error {
			var dbRoom DBRoom
			if err := dbRoom.UnmarshalBinary(v); err != nil {
				return err
			}
			rooms = append(rooms, models.RoomSummary{
				ID:           dbRoom.ID,
				Name:         dbRoom.Name,
				CreatedBy:    dbRoom.CreatedBy,
				CreatedAt:    dbRoom.CreatedAt,
				LastActivity: dbRoom.LastActivity,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].LastActivity > rooms[j].LastActivity })
	if limit > 0 && len(rooms) > limit {
		rooms = rooms[:limit]
	}
	return rooms, nil
}

// UpsertUser stores a new or updated account record.
func (s *BboltStorage) UpsertUser(user models.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		dbUser := &DBUser{
			UserID:       user.UserID,
			Username:     user.Username,
			PasswordHash: user.PasswordHash,
			CreatedAt:    user.CreatedAt,
			LastActive:   user.LastActive,
		}
		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbUser.Key(), data)
	})
}

// GetUser returns the account with the given id; found is false when no
// such account exists.
func (s *BboltStorage) GetUser(userID string) (models.User, bool, error) {
	var user models.User
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(userID))
		if data == nil {
			return nil
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = userFromDB(dbUser)
		found = true
		return nil
	})
	return user, found, err
}

// GetUserByName scans for an account with the given username.
func (s *BboltStorage) GetUserByName(username string) (models.User, bool, error) {
	var user models.User
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		return b.ForEach(func(k, v []byte) error {
			if found {
				return nil
			}
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbUser.Username == username {
				user = userFromDB(dbUser)
				found = true
			}
			return nil
		})
	})
	return user, found, err
}

// GetUsers resolves a batch of userIDs; missing ids are simply absent
// from the result.
func (s *BboltStorage) GetUsers(userIDs []string) (map[string]models.User, error) {
	users := make(map[string]models.User, len(userIDs))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		for _, id := range userIDs {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(data); err != nil {
				return err
			}
			users[id] = userFromDB(dbUser)
		}
		return nil
	})
	return users, err
}

func userFromDB(u DBUser) models.User {
	return models.User{
		UserID:       u.UserID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		LastActive:   u.LastActive,
	}
}

func roomToDB(rec models.RoomRecord) DBRoom {
	dbRoom := DBRoom{
		ID:           rec.ID,
		Name:         rec.Name,
		CreatedBy:    rec.CreatedBy,
		CreatedAt:    rec.CreatedAt,
		LastActivity: rec.LastActivity,
		Participants: rec.Participants,
	}
	for _, f := range rec.Files {
		dbRoom.Files = append(dbRoom.Files, DBFile{
			ID:        f.ID,
			Name:      f.Name,
			Content:   f.Content,
			Language:  f.Language,
			FolderID:  f.FolderID,
			UpdatedAt: f.UpdatedAt,
		})
	}
	for _, f := range rec.Folders {
		dbRoom.Folders = append(dbRoom.Folders, DBFolder{
			ID:       f.ID,
			Name:     f.Name,
			ParentID: f.ParentID,
		})
	}
	for _, m := range rec.Messages {
		dbRoom.Messages = append(dbRoom.Messages, DBChatEntry{
			ID:        m.ID,
			UserID:    m.UserID,
			Username:  m.Username,
			Text:      m.Text,
			HTML:      m.HTML,
			CreatedAt: m.CreatedAt,
		})
	}
	return dbRoom
}

func roomFromDB(dbRoom DBRoom) models.RoomRecord {
	rec := models.RoomRecord{
		ID:           dbRoom.ID,
		Name:         dbRoom.Name,
		CreatedBy:    dbRoom.CreatedBy,
		CreatedAt:    dbRoom.CreatedAt,
		LastActivity: dbRoom.LastActivity,
		Participants: dbRoom.Participants,
	}
	for _, f := range dbRoom.Files {
		rec.Files = append(rec.Files, models.FileRecord{
			ID:        f.ID,
			Name:      f.Name,
			Content:   f.Content,
			Language:  f.Language,
			FolderID:  f.FolderID,
			UpdatedAt: f.UpdatedAt,
		})
	}
	for _, f := range dbRoom.Folders {
		rec.Folders = append(rec.Folders, models.FolderRecord{
			ID:       f.ID,
			Name:     f.Name,
			ParentID: f.ParentID,
		})
	}
	for _, m := range dbRoom.Messages {
		rec.Messages = append(rec.Messages, models.ChatMessage{
			ID:        m.ID,
			UserID:    m.UserID,
			Username:  m.Username,
			Text:      m.Text,
			HTML:      m.HTML,
			CreatedAt: m.CreatedAt,
		})
	}
	return rec
}
