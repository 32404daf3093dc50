package ws

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"ding-server/config"
	"ding-server/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RoomManager defines what the Hub needs from the room manager.
type RoomManager interface {
	CreateRoom(ctx context.Context, name, hostName string, hotseat bool) (*room.Room, error)
	GetRoom(ctx context.Context, code string) (*room.Room, error)
}

// Hub maintains the set of active clients.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Manager    RoomManager
	Config     *config.Config
}

// NewHub creates a new Hub.
func NewHub(cfg *config.Config, mgr RoomManager) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Manager:    mgr,
		Config:     cfg,
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled (e.g. on server shutdown), Run returns and no longer accepts new registrations.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Print("Hub: shutdown signal received, stopping")
			return
		case client := <-h.Register:
			h.Clients[client] = true
			log.Printf("Client connected. Total clients: %d", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)

				// Detach from the room; the seat stays and is marked
				// disconnected so the player can come back.
				if client.Room != nil && client.Sub != nil {
					select {
					case client.Room.Actions <- room.Action{
						Type: room.ActionDetach,
						Sub:  client.Sub,
						Seat: -1,
					}:
					case <-client.Room.Done:
					}
				}
				log.Printf("Client disconnected. Total clients: %d", len(h.Clients))
			}
		}
	}
}

// ServeWS handles WebSocket upgrade requests and creates a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
