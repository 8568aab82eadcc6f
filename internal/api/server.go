// Package api serves the inventory read model to the display surface as
// JSON over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"NetInventory/internal/ident"
	"NetInventory/internal/ingest"
	"NetInventory/internal/model"
)

// Server holds the dependencies for the API handlers.
type Server struct {
	orch *ingest.Orchestrator
}

// NewServer creates an API server over the given orchestrator.
func NewServer(orch *ingest.Orchestrator) *Server {
	return &Server{orch: orch}
}

// Router builds the API route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/hosts", s.hostsHandler).Methods("GET")
	r.HandleFunc("/api/v1/hosts/{ip}/protocols", s.protocolsHandler).Methods("GET")
	r.HandleFunc("/api/v1/hosts/{ip}/connections", s.connectionsHandler).Methods("GET")
	r.HandleFunc("/api/v1/hosts/{ip}/summary", s.summaryHandler).Methods("GET")
	r.HandleFunc("/api/v1/ingest", s.ingestHandler).Methods("POST")
	return r
}

func (s *Server) hostsHandler(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.orch.Hosts(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list hosts: %v", err), http.StatusInternalServerError)
		return
	}
	if hosts == nil {
		hosts = []model.Host{}
	}
	writeJSON(w, hosts)
}

func (s *Server) protocolsHandler(w http.ResponseWriter, r *http.Request) {
	ip, ok := pathIP(w, r)
	if !ok {
		return
	}
	obs, err := s.orch.HostProtocols(r.Context(), ip)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list protocols: %v", err), http.StatusInternalServerError)
		return
	}
	if obs == nil {
		obs = []model.ProtocolObservation{}
	}
	writeJSON(w, obs)
}

func (s *Server) connectionsHandler(w http.ResponseWriter, r *http.Request) {
	ip, ok := pathIP(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		limit = n
	}
	conns, err := s.orch.HostConnections(r.Context(), ip, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list connections: %v", err), http.StatusInternalServerError)
		return
	}
	if conns == nil {
		conns = []model.Connection{}
	}
	writeJSON(w, conns)
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	ip, ok := pathIP(w, r)
	if !ok {
		return
	}
	summary, err := s.orch.ProtocolSummary(r.Context(), ip)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to summarize protocols: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"ip": ip, "protocols": summary})
}

// ingestHandler triggers an on-demand ingestion pass.
func (s *Server) ingestHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.RunPass(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("ingestion pass failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func pathIP(w http.ResponseWriter, r *http.Request) (string, bool) {
	ip := mux.Vars(r)["ip"]
	if !ident.ValidIP(ip) {
		http.Error(w, fmt.Sprintf("invalid ip %q", ip), http.StatusBadRequest)
		return "", false
	}
	return ip, true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}
