package domain

import "time"

// PeerInfo describes one client connection held by the server
type PeerInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remoteAddr"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastMessage time.Time `json:"lastMessage"`
	Messages    int       `json:"messages"`
	Active      bool      `json:"active"`
}

// SlotState is a point-in-time view of the single job slot
type SlotState struct {
	GateOpen     bool   `json:"gateOpen"`
	ActiveClient string `json:"activeClient,omitempty"`
	JobID        int32  `json:"jobId"`
	JobDir       string `json:"jobDir,omitempty"`
	Completed    bool   `json:"completed"`
}
