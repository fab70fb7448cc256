package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"artel/internal/auth"
	"artel/internal/models"
	"artel/internal/ws"

	"github.com/google/uuid"
)

const recentRoomLimit = 20

type roomLister interface {
	ListRooms(limit int) ([]models.RoomSummary, error)
}

// API is the REST boundary: account issuance and room listing/creation.
// Everything real-time goes through the websocket event channel.
type API struct {
	auth  *auth.Service
	hub   *ws.Hub
	rooms roomLister
}

func New(authService *auth.Service, hub *ws.Hub, rooms roomLister) *API {
	return &API{auth: authService, hub: hub, rooms: rooms}
}

func (a *API) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := a.auth.SignUp(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "UsernameTaken")
		return
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("signup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}

	writeJSON(w, identity)
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing username or password")
		return
	}

	identity, err := a.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "InvalidCredentials")
		return
	case err != nil:
		log.Printf("login failed: %v", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, identity)
}

// RoomsHandler lists recently active rooms from the durable store, with
// creator names resolved best-effort.
func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.rooms.ListRooms(recentRoomLimit)
	if err != nil {
		log.Printf("failed to list rooms: %v", err)
		writeError(w, http.StatusInternalServerError, "could not list rooms")
		return
	}

	var creatorIDs []string
	for _, room := range rooms {
		if room.CreatedBy != "" {
			creatorIDs = append(creatorIDs, room.CreatedBy)
		}
	}
	names := a.auth.ResolveNames(creatorIDs)
	for i := range rooms {
		rooms[i].CreatedByName = names[rooms[i].CreatedBy]
	}

	if rooms == nil {
		rooms = []models.RoomSummary{}
	}
	writeJSON(w, rooms)
}

func (a *API) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		CreatedBy string `json:"createdBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary := a.hub.RoomCreate(uuid.NewString(), req.Name, req.CreatedBy)
	writeJSON(w, map[string]string{"id": summary.ID, "name": summary.Name})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		log.Printf("failed to encode error response: %v", err)
	}
}
