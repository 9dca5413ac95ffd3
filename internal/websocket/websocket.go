package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ipr-host/internal/state"
	"ipr-host/internal/types"
)

var (
	wsClients      = make(map[*types.WSClient]bool)
	wsClientsMutex sync.RWMutex
	upgrader       = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Origin checks are the CORS layer's concern, not the hub's.
			return true
		},
	}
)

func addClient(client *types.WSClient) {
	wsClientsMutex.Lock()
	wsClients[client] = true
	wsClientsMutex.Unlock()
}

func removeClient(client *types.WSClient) {
	wsClientsMutex.Lock()
	delete(wsClients, client)
	wsClientsMutex.Unlock()
}

// ClientCount returns the number of connected dashboard clients.
func ClientCount() int {
	wsClientsMutex.RLock()
	defer wsClientsMutex.RUnlock()
	return len(wsClients)
}

// Handler upgrades the connection and streams shell state to the client.
func Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &types.WSClient{Conn: conn}

	addClient(client)
	defer removeClient(client)

	logrus.Info("New WebSocket client connected")

	// Send the current shell state so the dashboard renders immediately.
	snapshot := state.GetSnapshot()
	client.Mu.Lock()
	writeErr := client.Conn.WriteJSON(types.WSMessage{
		Type:     "snapshot",
		Snapshot: &snapshot,
	})
	client.Mu.Unlock()
	if writeErr != nil {
		logrus.WithError(writeErr).Error("Failed to send initial snapshot")
		return
	}

	for {
		var msg types.WSClientMessage
		if readErr := conn.ReadJSON(&msg); readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(readErr).Error("WebSocket error")
			}
			break
		}

		logrus.WithField("action", msg.Action).Info("WebSocket message received")

		switch msg.Action {
		case "refresh":
			BroadcastSnapshot()
		}
	}

	logrus.Info("WebSocket client disconnected")
}

// writeWait bounds a single client write so a reader that stopped draining
// its connection cannot hold the write lock forever.
const writeWait = 5 * time.Second

// BroadcastToAll sends a message to all connected clients. Each write runs
// in its own goroutine so a stuck client never stalls the caller; a write
// that errors or times out drops the client.
func BroadcastToAll(msg types.WSMessage) {
	wsClientsMutex.RLock()
	clients := make([]*types.WSClient, 0, len(wsClients))
	for client := range wsClients {
		clients = append(clients, client)
	}
	wsClientsMutex.RUnlock()

	for _, client := range clients {
		go func(c *types.WSClient) {
			c.Mu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.Conn.WriteJSON(msg)
			c.Mu.Unlock()
			if err != nil {
				logrus.WithError(err).Warn("Failed to write to WebSocket client, dropping")
				c.Conn.Close()
				removeClient(c)
			}
		}(client)
	}
}

// BroadcastSnapshot pushes the full current state to every client.
func BroadcastSnapshot() {
	snapshot := state.GetSnapshot()
	BroadcastToAll(types.WSMessage{
		Type:     "snapshot",
		Snapshot: &snapshot,
	})
}

// BroadcastStep pushes a finished bootstrap step to every client.
func BroadcastStep(result types.StepResult) {
	BroadcastToAll(types.WSMessage{
		Type: "step",
		Step: &result,
	})
}

// BroadcastAppStatus pushes an application state change to every client.
func BroadcastAppStatus(status, message string) {
	BroadcastToAll(types.WSMessage{
		Type:    "app_status",
		Status:  status,
		Message: message,
	})
}
