package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/Garsondee/Driftwar/internal/store"
	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	queryTimeout = 5 * time.Second
)

// Saves is the read side of the save store the API exposes.
type Saves interface {
	List(ctx context.Context) ([]store.Summary, error)
	Load(ctx context.Context, slot string) (store.Record, error)
	Delete(ctx context.Context, slot string) error
	Battles(ctx context.Context, slot string) ([]store.BattleRecord, error)
}

// Server serves the live arena and the save store over HTTP.
type Server struct {
	arena    *Arena
	saves    Saves
	log      zerolog.Logger
	upgrader ws.Upgrader
}

// New builds a server. saves may be nil, in which case the save routes
// answer 503.
func New(arena *Arena, saves Saves, log zerolog.Logger) *Server {
	return &Server{
		arena: arena,
		saves: saves,
		log:   log,
		upgrader: ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router wires every route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)
	api.HandleFunc("/live/report", s.handleLiveReport).Methods(http.MethodGet)
	api.HandleFunc("/live/reinforce", s.handleReinforce).Methods(http.MethodPost)
	api.HandleFunc("/saves", s.handleListSaves).Methods(http.MethodGet)
	api.HandleFunc("/saves/{slot}", s.handleLoadSave).Methods(http.MethodGet)
	api.HandleFunc("/saves/{slot}", s.handleDeleteSave).Methods(http.MethodDelete)
	api.HandleFunc("/saves/{slot}/battles", s.handleBattles).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"spectators":  s.arena.Subscribers(),
		"storeOnline": s.saves != nil,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.arena.Frame())
}

type reportResponse struct {
	Report  combat.Report `json:"report"`
	WinRate float64       `json:"winRate"`
	Text    string        `json:"text"`
}

func (s *Server) handleLiveReport(w http.ResponseWriter, r *http.Request) {
	rep := combat.BuildReport(s.arena.Results())
	writeJSON(w, http.StatusOK, reportResponse{Report: rep, WinRate: rep.WinRate(), Text: rep.String()})
}

type reinforceRequest struct {
	Probes   float64 `json:"probes"`
	Drifters float64 `json:"drifters"`
}

func (s *Server) handleReinforce(w http.ResponseWriter, r *http.Request) {
	var req reinforceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Probes < 0 || req.Drifters < 0 {
		writeError(w, http.StatusBadRequest, "reinforcements must be non-negative")
		return
	}
	s.arena.Reinforce(req.Probes, req.Drifters)
	s.log.Info().Float64("probes", req.Probes).Float64("drifters", req.Drifters).Msg("Reinforced")
	writeJSON(w, http.StatusOK, s.arena.Frame())
}

func (s *Server) storeReady(w http.ResponseWriter) bool {
	if s.saves == nil {
		writeError(w, http.StatusServiceUnavailable, "save store offline")
		return false
	}
	return true
}

func (s *Server) storeError(w http.ResponseWriter, slot string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such slot")
		return
	}
	s.log.Error().Err(err).Str("slot", slot).Msg("Store query failed")
	writeError(w, http.StatusInternalServerError, "store error")
}

func (s *Server) handleListSaves(w http.ResponseWriter, r *http.Request) {
	if !s.storeReady(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	list, err := s.saves.List(ctx)
	if err != nil {
		s.storeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLoadSave(w http.ResponseWriter, r *http.Request) {
	if !s.storeReady(w) {
		return
	}
	slot := mux.Vars(r)["slot"]
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	rec, err := s.saves.Load(ctx, slot)
	if err != nil {
		s.storeError(w, slot, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteSave(w http.ResponseWriter, r *http.Request) {
	if !s.storeReady(w) {
		return
	}
	slot := mux.Vars(r)["slot"]
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	if err := s.saves.Delete(ctx, slot); err != nil {
		s.storeError(w, slot, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBattles(w http.ResponseWriter, r *http.Request) {
	if !s.storeReady(w) {
		return
	}
	slot := mux.Vars(r)["slot"]
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	rows, err := s.saves.Battles(ctx, slot)
	if err != nil {
		s.storeError(w, slot, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// frameWriter sends one frame as a JSON text message, or as a msgpack
// binary message when the spectator asked for ?format=msgpack.
type frameWriter func(conn *ws.Conn, f Frame) error

func writeFrameJSON(conn *ws.Conn, f Frame) error {
	return conn.WriteJSON(f)
}

func writeFrameMsgpack(conn *ws.Conn, f Frame) error {
	data, err := msgpack.Marshal(&f)
	if err != nil {
		return err
	}
	return conn.WriteMessage(ws.BinaryMessage, data)
}

// handleWS streams frames until the spectator disconnects. Incoming
// messages are read only to notice the close.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	write := frameWriter(writeFrameJSON)
	switch r.URL.Query().Get("format") {
	case "", "json":
	case "msgpack":
		write = writeFrameMsgpack
	default:
		writeError(w, http.StatusBadRequest, "format must be json or msgpack")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	frames, unsubscribe := s.arena.Subscribe()
	defer unsubscribe()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("Spectator joined")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	// The current frame first, so a spectator never waits for a tick.
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := write(conn, s.arena.Frame()); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			s.log.Debug().Str("remote", r.RemoteAddr).Msg("Spectator left")
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := write(conn, f); err != nil {
				s.log.Debug().Err(err).Msg("Spectator write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
