package connectionmanager

import (
	"sort"
	"sync"
	"time"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

type entry struct {
	conn *transport.Conn
	info domain.PeerInfo
}

// ConnectionManager is the watched set of client connections. The reactor
// mutates it; the monitor reads it.
type ConnectionManager struct {
	connections map[string]*entry
	connMutex   sync.RWMutex
	Logger      primary.Logger
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger primary.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*entry),
		Logger:      logger,
	}
}

// Add registers a freshly accepted connection
func (cm *ConnectionManager) Add(conn *transport.Conn) {
	now := time.Now()
	cm.connMutex.Lock()
	cm.connections[conn.ID()] = &entry{
		conn: conn,
		info: domain.PeerInfo{
			ID:          conn.ID(),
			RemoteAddr:  conn.RemoteAddr(),
			ConnectedAt: now,
			LastMessage: now,
		},
	}
	cm.connMutex.Unlock()
}

// Remove drops a connection from the set; false means it was already gone
func (cm *ConnectionManager) Remove(connID string) (*transport.Conn, bool) {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()

	e, exists := cm.connections[connID]
	if !exists {
		return nil, false
	}
	delete(cm.connections, connID)
	return e.conn, true
}

// Touch records that a frame arrived on connID
func (cm *ConnectionManager) Touch(connID string) bool {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()

	e, exists := cm.connections[connID]
	if !exists {
		return false
	}
	e.info.LastMessage = time.Now()
	e.info.Messages++
	return true
}

// Len returns the number of open connections
func (cm *ConnectionManager) Len() int {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()
	return len(cm.connections)
}

// Peers lists the open connections oldest first; activeID marks the active client
func (cm *ConnectionManager) Peers(activeID string) []domain.PeerInfo {
	cm.connMutex.RLock()
	peers := make([]domain.PeerInfo, 0, len(cm.connections))
	for id, e := range cm.connections {
		info := e.info
		info.Active = id == activeID
		peers = append(peers, info)
	}
	cm.connMutex.RUnlock()

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].ConnectedAt.Before(peers[j].ConnectedAt)
	})
	return peers
}

// CloseAll closes and forgets every connection, returning their ids
func (cm *ConnectionManager) CloseAll() []string {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()

	ids := make([]string, 0, len(cm.connections))
	for id, e := range cm.connections {
		if err := e.conn.Close(); err != nil {
			cm.Logger.Error("Failed to close connection", "connID", id, "error", err)
		}
		ids = append(ids, id)
	}
	cm.connections = make(map[string]*entry)
	return ids
}
