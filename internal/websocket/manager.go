package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Manager pushes ledger events to every connected UI screen. Screens only
// listen; state mutations go through the HTTP API.
type Manager struct {
	clients      map[string]*Client
	clientsMutex sync.RWMutex
	Register     chan *Client
	Unregister   chan *Client
	maxClients   int
	writeWait    time.Duration
	pongWait     time.Duration
	pingPeriod   time.Duration
}

func NewManager(maxClients int, writeWait, pongWait, pingPeriod time.Duration) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		maxClients: maxClients,
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if len(m.clients) >= m.maxClients {
		log.Printf("max websocket connections reached, rejecting %s", client.id)
		close(client.send)
		return
	}

	m.clients[client.id] = client
	log.Printf("screen connected: %s", client.id)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.id]; ok {
		delete(m.clients, client.id)
		close(client.send)
		log.Printf("screen disconnected: %s", client.id)
	}
}

// Broadcast sends a message to every connected screen. A screen with a full
// send buffer is dropped rather than blocking the rest.
func (m *Manager) Broadcast(message *Message) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for id, client := range m.clients {
		select {
		case client.send <- messageBytes:
		default:
			log.Printf("screen %s send buffer full, closing connection", id)
			go func(c *Client) { m.Unregister <- c }(client)
		}
	}

	return nil
}

func (m *Manager) Connections() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}
