package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"artel/internal/client"
	"artel/internal/models"

	"github.com/stretchr/testify/require"
)

func TestIntegration(t *testing.T) {
	dbFile := "integration_test.db"
	_ = os.Remove(dbFile)
	defer func() { _ = os.Remove(dbFile) }()

	apiAddr := "127.0.0.1:8897"

	_ = os.Setenv("ARTEL_DB", dbFile)
	_ = os.Setenv("API_ADDR", apiAddr)
	defer func() {
		_ = os.Unsetenv("ARTEL_DB")
		_ = os.Unsetenv("API_ADDR")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx)
	}()

	baseURL := "http://" + apiAddr
	wsURL := "ws://" + apiAddr + "/ws"
	waitForServer(t, baseURL+"/api/rooms", 20)

	// Step 1: Accounts over REST.
	var alice models.Identity
	{
		body, _ := json.Marshal(map[string]string{"username": "alice", "password": "secret"})
		resp, err := http.Post(baseURL+"/api/auth/signup", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&alice))
		_ = resp.Body.Close()
		require.NotEmpty(t, alice.UserID)
		require.Equal(t, "alice", alice.Username)

		// Duplicate username is a conflict.
		resp, err = http.Post(baseURL+"/api/auth/signup", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		_ = resp.Body.Close()

		// Login round-trips the same identity; a bad password does not.
		resp, err = http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var logged models.Identity
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&logged))
		_ = resp.Body.Close()
		require.Equal(t, alice.UserID, logged.UserID)

		bad, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
		resp, err = http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(bad))
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	}

	// Step 2: Alice connects, creates a room and a file.
	a, err := client.Dial(ctx, wsURL)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	aliceID, err := a.Authenticate("alice", alice.UserID)
	require.NoError(t, err)
	require.Equal(t, alice.UserID, aliceID.UserID)

	room, err := a.CreateRoom("Demo")
	require.NoError(t, err)
	require.Equal(t, "Demo", room.Name)

	joined, err := a.Join(room.ID)
	require.NoError(t, err)
	require.Equal(t, room.ID, joined.ID)

	// Own-join presence snapshot: alice alone.
	presence, err := a.WaitPush(models.ServerPresenceUpdate, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, presence.Participants, 1)

	mainPy, err := a.CreateFile(room.ID, "main.py", "")
	require.NoError(t, err)
	require.Equal(t, "python", mainPy.Language)

	_, err = a.RefreshFiles(room.ID)
	require.NoError(t, err)
	a.Mirror.Open(mainPy.ID)

	// Step 3: Bob joins as a guest and sees the presence and the file.
	b, err := client.Dial(ctx, wsURL)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	bobID, err := b.Authenticate("bob", "")
	require.NoError(t, err)
	require.NotEmpty(t, bobID.UserID)

	_, err = b.Join(room.ID)
	require.NoError(t, err)

	presence, err = a.WaitPush(models.ServerPresenceUpdate, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, presence.Participants, 2)

	files, err := b.RefreshFiles(room.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	b.Mirror.Open(mainPy.ID)

	// Step 4: A durable save lands in Bob's open buffer.
	require.NoError(t, a.SaveFile(room.ID, mainPy.ID, "print('v1')"))
	push, err := b.WaitPush(models.ServerFileChanged, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "print('v1')", push.Content)
	require.NotZero(t, push.UpdatedAt)
	_, visible := b.Mirror.Visible()
	require.Equal(t, "print('v1')", visible)

	// The save echoes back to the sender as well.
	push, err = a.WaitPush(models.ServerFileChanged, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "print('v1')", push.Content)

	// Step 5: Bob's transient typing streams into Alice's clean buffer
	// without touching the durable copy.
	require.NoError(t, b.TransientEdit(room.ID, mainPy.ID, "print('bob wip')"))
	push, err = a.WaitPush(models.ServerFileChanged, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "print('bob wip')", push.Content)
	require.Zero(t, push.UpdatedAt)
	_, visible = a.Mirror.Visible()
	require.Equal(t, "print('bob wip')", visible)

	files, err = a.RefreshFiles(room.ID)
	require.NoError(t, err)
	require.Equal(t, "print('v1')", files[0].Content)

	// Step 6: Alice types while Bob still has his draft. Bob's visible
	// buffer must keep the draft; only his off-screen copy moves.
	require.NoError(t, a.TransientEdit(room.ID, mainPy.ID, "print('alice wip')"))
	_, err = b.WaitPush(models.ServerFileChanged, 2*time.Second)
	require.NoError(t, err)
	_, visible = b.Mirror.Visible()
	require.Equal(t, "print('bob wip')", visible)
	require.Equal(t, "print('alice wip')", b.Mirror.Cached(mainPy.ID))

	// Saving releases the draft.
	require.NoError(t, b.SaveFile(room.ID, mainPy.ID, "print('bob wip')"))
	require.False(t, b.Mirror.HasDraft(mainPy.ID))

	// Step 7: Chat keeps one server-assigned order for everyone.
	_, err = a.SendChat(room.ID, "one")
	require.NoError(t, err)
	_, err = a.SendChat(room.ID, "two")
	require.NoError(t, err)
	_, err = b.SendChat(room.ID, "three")
	require.NoError(t, err)

	var got []string
	for len(got) < 3 {
		ev, err := b.WaitPush(models.ServerChatNew, 2*time.Second)
		require.NoError(t, err)
		got = append(got, ev.Message.Text)
	}
	require.Equal(t, []string{"one", "two", "three"}, got)

	history, err := b.ChatHistory(room.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "one", history[0].Text)
	require.Equal(t, alice.UserID, history[0].UserID)

	// Step 8: Cursor, whiteboard and signaling relays reach the peer
	// and only the peer.
	require.NoError(t, a.SendCursor(room.ID, mainPy.ID, json.RawMessage(`{"line":1}`)))
	_, err = b.WaitPush(models.ServerCursorUpdate, 2*time.Second)
	require.NoError(t, err)
	cur, ok := b.Cursors.Get(alice.UserID)
	require.True(t, ok)
	require.Equal(t, "alice", cur.Username)

	require.NoError(t, a.SendWhiteboard(room.ID, models.WhiteboardEvent{
		Kind: models.WhiteboardStroke,
		From: &models.Point{X: 0, Y: 0},
		To:   &models.Point{X: 10, Y: 10},
	}))
	board, err := b.WaitPush(models.ServerWhiteboard, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, models.WhiteboardStroke, board.Board.Kind)

	require.NoError(t, a.Signal(room.ID, bobID.UserID, json.RawMessage(`{"sdp":"offer"}`)))
	sig, err := b.WaitPush(models.ServerSignal, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, alice.UserID, sig.FromUserID)
	require.JSONEq(t, `{"sdp":"offer"}`, string(sig.Data))

	// Step 9: The room shows up in the REST listing with the creator
	// name resolved.
	// Persists are asynchronous, so poll the listing briefly.
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/api/rooms")
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		var rooms []models.RoomSummary
		err = json.NewDecoder(resp.Body).Decode(&rooms)
		_ = resp.Body.Close()
		if err != nil {
			return false
		}
		for _, r := range rooms {
			if r.ID == room.ID {
				return r.Name == "Demo" && r.CreatedByName == "alice"
			}
		}
		return false
	}, 2*time.Second, 50*time.Millisecond, "created room missing from listing")

	// Step 10: Shutdown.
	_ = a.Close()
	_ = b.Close()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func waitForServer(t *testing.T, urlStr string, retries int) {
	t.Helper()
	httpClient := &http.Client{Timeout: 500 * time.Millisecond}
	for i := 0; i < retries; i++ {
		resp, err := httpClient.Get(urlStr)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server failed to start at %s after %d retries", urlStr, retries)
}

// TestRoomSurvivesRestart exercises the durable round-trip: state written
// by one server process is hydrated by the next.
func TestRoomSurvivesRestart(t *testing.T) {
	dbFile := "restart_test.db"
	_ = os.Remove(dbFile)
	defer func() { _ = os.Remove(dbFile) }()

	apiAddr := "127.0.0.1:8898"
	_ = os.Setenv("ARTEL_DB", dbFile)
	_ = os.Setenv("API_ADDR", apiAddr)
	defer func() {
		_ = os.Unsetenv("ARTEL_DB")
		_ = os.Unsetenv("API_ADDR")
	}()

	wsURL := "ws://" + apiAddr + "/ws"
	healthURL := fmt.Sprintf("http://%s/api/rooms", apiAddr)

	var roomID, fileID string

	// First life: create a room with a file and a chat message.
	{
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- run(ctx) }()
		waitForServer(t, healthURL, 20)

		c, err := client.Dial(ctx, wsURL)
		require.NoError(t, err)
		_, err = c.Authenticate("alice", "")
		require.NoError(t, err)
		room, err := c.CreateRoom("Persistent")
		require.NoError(t, err)
		roomID = room.ID
		_, err = c.Join(roomID)
		require.NoError(t, err)

		f, err := c.CreateFile(roomID, "notes.ts", "")
		require.NoError(t, err)
		fileID = f.ID
		require.NoError(t, c.SaveFile(roomID, fileID, "export const x = 1"))
		_, err = c.SendChat(roomID, "remember this")
		require.NoError(t, err)

		_ = c.Close()
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("server did not shut down")
		}
	}

	// Second life: everything comes back from the store.
	{
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- run(ctx) }()
		waitForServer(t, healthURL, 20)

		c, err := client.Dial(ctx, wsURL)
		require.NoError(t, err)
		defer func() { _ = c.Close() }()
		_, err = c.Authenticate("bob", "")
		require.NoError(t, err)

		room, err := c.Join(roomID)
		require.NoError(t, err)
		require.Equal(t, "Persistent", room.Name)

		files, err := c.RefreshFiles(roomID)
		require.NoError(t, err)
		require.Len(t, files, 1)
		require.Equal(t, fileID, files[0].ID)
		require.Equal(t, "export const x = 1", files[0].Content)
		require.Equal(t, "typescript", files[0].Language)

		history, err := c.ChatHistory(roomID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.Equal(t, "remember this", history[0].Text)

		_ = c.Close()
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("server did not shut down")
		}
	}
}
