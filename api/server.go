package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wricardo/matchbroker/lobby/broker"
	"github.com/wricardo/matchbroker/lobby/catalog"
	"github.com/wricardo/matchbroker/lobby/session"
)

// Lobby is the read side of the broker plus the game-deleted hook.
// *broker.Broker implements it.
type Lobby interface {
	Snapshot() []broker.RoomView
	SomeoneWaiting(gameID string) bool
	RoomJoinable(gameID string) bool
	NotifyGameDeleted(gameID string)
}

// Catalog is implemented by *catalog.Manager.
type Catalog interface {
	List() ([]*catalog.Game, error)
	Load(id string) (*catalog.Game, error)
	Save(game *catalog.Game) error
	Delete(id string) error
}

// Matches is implemented by *session.Manager.
type Matches interface {
	List() []*session.Match
	Get(id string) (*session.Match, error)
	Touch(id string) error
	Delete(id string) error
}

// Deps groups what the server needs. Hub may be nil, in which case /ws
// answers 503.
type Deps struct {
	Lobby   Lobby
	Catalog Catalog
	Matches Matches
	Hub     WebSocketHandler
	Logger  *zap.Logger
}

// WebSocketHandler is implemented by *websocket.Hub.
type WebSocketHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// Server represents the REST API server
type Server struct {
	lobby   Lobby
	catalog Catalog
	matches Matches
	hub     WebSocketHandler
	logger  *zap.Logger
	router  *mux.Router
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		lobby:   deps.Lobby,
		catalog: deps.Catalog,
		matches: deps.Matches,
		hub:     deps.Hub,
		logger:  logger,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// Router exposes the mux so callers can mount extra routes such as /mcp
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Lobby
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/games/{id}/waiting", s.handleSomeoneWaiting).Methods("GET")
	api.HandleFunc("/games/{id}/joinable", s.handleRoomJoinable).Methods("GET")

	// Catalog
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games", s.handleSaveGame).Methods("POST")
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleDeleteGame).Methods("DELETE")

	// Finalized matches
	api.HandleFunc("/matches", s.handleListMatches).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleGetMatch).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleDeleteMatch).Methods("DELETE")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Lobby Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game")
	state := r.URL.Query().Get("state")

	rooms := make([]broker.RoomView, 0)
	for _, v := range s.lobby.Snapshot() {
		if gameID != "" && v.GameID != gameID {
			continue
		}
		if state != "" && v.State != state {
			continue
		}
		rooms = append(rooms, v)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleSomeoneWaiting(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"gameId":  gameID,
		"waiting": s.lobby.SomeoneWaiting(gameID),
	})
}

func (s *Server) handleRoomJoinable(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"gameId":   gameID,
		"joinable": s.lobby.RoomJoinable(gameID),
	})
}

// Catalog Handlers

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.catalog.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if games == nil {
		games = []*catalog.Game{}
	}
	respondJSON(w, http.StatusOK, games)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.catalog.Load(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, catalogStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, game)
}

func (s *Server) handleSaveGame(w http.ResponseWriter, r *http.Request) {
	var game catalog.Game
	if err := json.NewDecoder(r.Body).Decode(&game); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.catalog.Save(&game); err != nil {
		respondError(w, catalogStatus(err), err.Error())
		return
	}

	s.logger.Info("game saved", zap.String("game", game.ID))
	respondJSON(w, http.StatusCreated, game)
}

// handleDeleteGame removes the game and then dissolves its rooms.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	if err := s.catalog.Delete(gameID); err != nil {
		respondError(w, catalogStatus(err), err.Error())
		return
	}
	s.lobby.NotifyGameDeleted(gameID)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Game %s deleted", gameID),
	})
}

func catalogStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalidGame):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Match Handlers

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches := s.matches.List()

	query := r.URL.Query()
	gameID := query.Get("game")
	sortBy := query.Get("sort")    // "created" (default), "accessed"
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of matches to return

	if sortBy == "" {
		sortBy = "created"
	}
	if order == "" {
		order = "desc"
	}

	filtered := make([]*session.Match, 0, len(matches))
	for _, m := range matches {
		if gameID == "" || m.GameID == gameID {
			filtered = append(filtered, m)
		}
	}
	total := len(filtered)

	sort.SliceStable(filtered, func(i, j int) bool {
		ti, tj := filtered[i].CreatedAt, filtered[j].CreatedAt
		if sortBy == "accessed" {
			ti, tj = filtered[i].LastAccessedAt, filtered[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(filtered) {
			filtered = filtered[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(filtered),
		"total":   total,
		"matches": filtered,
		"sort":    sortBy,
		"order":   order,
	})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	match, err := s.matches.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := s.matches.Touch(id); err != nil {
		s.logger.Debug("touch failed", zap.String("match", id), zap.Error(err))
	}

	respondJSON(w, http.StatusOK, match)
}

func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.matches.Delete(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrMatchNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Match %s deleted", id),
	})
}

// Transport Handlers

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "websocket transport not available")
		return
	}
	s.hub.ServeWS(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	connections := 0
	if s.hub != nil {
		connections = s.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"rooms":       len(s.lobby.Snapshot()),
		"connections": connections,
	})
}
