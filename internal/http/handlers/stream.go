package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"batchgen/internal/progress"
)

const streamHeartbeat = 15 * time.Second

// Events streams batch progress over Server-Sent Events. A client connecting
// mid-run immediately receives the current snapshot, then live updates until
// the batch reaches a terminal event or the client disconnects.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	state, ok := a.Monitor.Get(batchID)
	if !ok {
		a.jsonError(w, http.StatusNotFound, "batch not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.jsonError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cancel := a.Broker.Subscribe(batchID)
	defer cancel()

	// Re-read after subscribing: a transition landing between the first
	// read and the subscription was published to nobody, so the snapshot
	// must reflect it or a terminal event would never reach this client.
	if fresh, ok := a.Monitor.Get(batchID); ok {
		state = fresh
	}

	writeSSE(w, progress.Event{Name: progress.EventConnected, Payload: progress.ConnectedPayload{
		BatchID:   batchID,
		Timestamp: time.Now().UTC(),
	}})
	// Replay the current snapshot so late subscribers never wait for the
	// next mutation to learn where the batch stands.
	current := progress.EventFor(state)
	writeSSE(w, current)
	flusher.Flush()
	if current.Name == progress.EventComplete || current.Name == progress.EventError {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event := <-events:
			writeSSE(w, event)
			flusher.Flush()
			if event.Name == progress.EventComplete || event.Name == progress.EventError {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event progress.Event) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, payload)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Socket streams the same progress events as Events over a WebSocket, for
// clients behind proxies that buffer SSE.
func (a *App) Socket(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	state, ok := a.Monitor.Get(batchID)
	if !ok {
		a.jsonError(w, http.StatusNotFound, "batch not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Str("batch_id", batchID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := a.Broker.Subscribe(batchID)
	defer cancel()

	// Same re-read as Events: a terminal transition in the gap between the
	// 404 check and the subscription would otherwise be lost.
	if fresh, ok := a.Monitor.Get(batchID); ok {
		state = fresh
	}

	if err := conn.WriteJSON(wsMessage{Event: progress.EventConnected, Payload: progress.ConnectedPayload{
		BatchID:   batchID,
		Timestamp: time.Now().UTC(),
	}}); err != nil {
		return
	}
	current := progress.EventFor(state)
	if err := conn.WriteJSON(wsMessage{Event: current.Name, Payload: current.Payload}); err != nil {
		return
	}
	if current.Name == progress.EventComplete || current.Name == progress.EventError {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case event := <-events:
			if err := conn.WriteJSON(wsMessage{Event: event.Name, Payload: event.Payload}); err != nil {
				return
			}
			if event.Name == progress.EventComplete || event.Name == progress.EventError {
				return
			}
		}
	}
}
