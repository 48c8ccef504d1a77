package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/matchbroker/lobby/broker"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrInvalidMatch  = errors.New("invalid match")
)

// Match is a room both players accepted, owned by gameplay from here on.
type Match struct {
	ID             string    `json:"id"`
	GameID         string    `json:"game_id"`
	ChannelID      string    `json:"channel_id"`
	Players        []string  `json:"players"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	OpponentLeft   bool      `json:"opponent_left"`
}

// Manager keeps the ledger of finalized matches. It implements
// broker.MatchSink.
type Manager struct {
	matches     map[string]*Match
	byChannel   map[string]string
	persistence MatchPersistence
	logger      *zap.Logger
	mu          sync.RWMutex
}

var _ broker.MatchSink = (*Manager)(nil)

// NewManager creates an in-memory match ledger
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		matches:   make(map[string]*Match),
		byChannel: make(map[string]string),
		logger:    logger,
	}
}

// NewManagerWithPersistence creates a match ledger that archives every change
func NewManagerWithPersistence(persistence MatchPersistence, logger *zap.Logger) *Manager {
	m := NewManager(logger)
	m.persistence = persistence
	return m
}

// MatchFinalized records a match handed off by the broker
func (m *Manager) MatchFinalized(fm broker.Match) {
	if _, err := m.Create(fm.GameID, fm.ChannelID, fm.Players); err != nil {
		m.logger.Error("failed to record match",
			zap.String("channel", fm.ChannelID),
			zap.Error(err))
	}
}

// OpponentLeftGame flags the match played on channelID
func (m *Manager) OpponentLeftGame(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byChannel[channelID]
	if !ok {
		m.logger.Warn("opponent left unknown match", zap.String("channel", channelID))
		return
	}

	match := m.matches[id]
	match.OpponentLeft = true
	match.LastAccessedAt = time.Now()
	m.save(match)
	m.logger.Info("opponent left match", zap.String("match", id), zap.String("channel", channelID))
}

// Create adds a match for channelID. A channel already in the ledger returns
// the existing match. Like every read, it returns a copy.
func (m *Manager) Create(gameID, channelID string, players []string) (*Match, error) {
	if gameID == "" || channelID == "" {
		return nil, ErrInvalidMatch
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byChannel[channelID]; ok {
		return m.matches[id].clone(), nil
	}

	now := time.Now()
	match := &Match{
		ID:             uuid.NewString(),
		GameID:         gameID,
		ChannelID:      channelID,
		Players:        append([]string(nil), players...),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.matches[match.ID] = match
	m.byChannel[channelID] = match.ID
	m.save(match)

	m.logger.Info("match recorded",
		zap.String("match", match.ID),
		zap.String("game", gameID),
		zap.String("channel", channelID))
	return match.clone(), nil
}

// Get retrieves a match by ID
func (m *Manager) Get(id string) (*Match, error) {
	m.mu.RLock()
	match, exists := m.matches[id]
	if exists {
		match = match.clone()
	}
	m.mu.RUnlock()

	if exists {
		return match, nil
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		match, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load archived match: %w", err)
		}

		m.mu.Lock()
		m.matches[match.ID] = match
		m.byChannel[match.ChannelID] = match.ID
		match = match.clone()
		m.mu.Unlock()

		return match, nil
	}

	return nil, ErrMatchNotFound
}

// GetByChannel retrieves the match played on channelID
func (m *Manager) GetByChannel(channelID string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byChannel[channelID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.matches[id].clone(), nil
}

// List returns all matches, oldest first
func (m *Manager) List() []*Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Match, 0, len(m.matches))
	for _, match := range m.matches {
		result = append(result, match.clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Touch updates the last accessed time for a match
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, exists := m.matches[id]
	if !exists {
		return ErrMatchNotFound
	}
	match.LastAccessedAt = time.Now()
	m.save(match)
	return nil
}

// Delete removes a match from memory and from the archive
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, inMemory := m.matches[id]
	if inMemory {
		delete(m.matches, id)
		delete(m.byChannel, match.ChannelID)
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete archived match: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrMatchNotFound
	}
	return nil
}

// CleanupExpiredMatches drops matches not accessed within maxAge. Archived
// copies are kept.
func (m *Manager) CleanupExpiredMatches(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, match := range m.matches {
		if match.LastAccessedAt.Before(cutoff) {
			delete(m.matches, id)
			delete(m.byChannel, match.ChannelID)
			removed++
		}
	}

	return removed
}

// Count returns the number of matches held in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matches)
}

// LoadPersistedMatches loads every archived match into memory
func (m *Manager) LoadPersistedMatches() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list archived matches: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, exists := m.matches[id]; exists {
			continue
		}

		match, err := m.persistence.Load(id)
		if err != nil {
			m.logger.Warn("failed to load archived match", zap.String("match", id), zap.Error(err))
			continue
		}

		m.matches[match.ID] = match
		m.byChannel[match.ChannelID] = match.ID
		loaded++
	}

	if loaded > 0 {
		m.logger.Info("loaded archived matches", zap.Int("count", loaded))
	}
	return nil
}

// clone returns a copy callers may read without holding m.mu
func (match *Match) clone() *Match {
	c := *match
	c.Players = append([]string(nil), match.Players...)
	return &c
}

// save archives match. Callers hold m.mu.
func (m *Manager) save(match *Match) {
	if m.persistence == nil {
		return
	}
	if err := m.persistence.Save(match); err != nil {
		m.logger.Warn("failed to archive match", zap.String("match", match.ID), zap.Error(err))
	}
}
