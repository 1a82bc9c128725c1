package status

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/handlers/response"
)

// SlotSource exposes the job slot state
type SlotSource interface {
	Snapshot() domain.SlotState
}

// PeerSource lists the connected clients
type PeerSource interface {
	Peers() []domain.PeerInfo
	Connections() int
}

// Response is the body of GET /api/status
type Response struct {
	Slot        domain.SlotState  `json:"slot"`
	Connections int               `json:"connections"`
	Peers       []domain.PeerInfo `json:"peers"`
}

// Handler serves the live server state
type Handler struct {
	slot  SlotSource
	peers PeerSource
}

func NewHandler(slot SlotSource, peers PeerSource) *Handler {
	return &Handler{slot: slot, peers: peers}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/status", h.GetStatus).Methods("GET")
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Slot:        h.slot.Snapshot(),
		Connections: h.peers.Connections(),
		Peers:       h.peers.Peers(),
	}
	if resp.Peers == nil {
		resp.Peers = []domain.PeerInfo{}
	}
	response.WriteSuccess(w, resp)
}
