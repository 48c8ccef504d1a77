package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/matchbroker/validate"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrInvalidGame  = errors.New("invalid game")
)

// Game is one playable catalog entry.
type Game struct {
	ID          string `json:"id" validate:"required,max=128,excludesall=/\\:"`
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
	MinPlayers  int    `json:"min_players" validate:"min=1,max=2"`
	MaxPlayers  int    `json:"max_players" validate:"eq=2"`
}

// Check implements validate.Checker.
func (g *Game) Check() []string {
	var problems []string
	if g.MinPlayers > g.MaxPlayers {
		problems = append(problems, "min_players must not exceed max_players")
	}
	if strings.TrimSpace(g.ID) != g.ID {
		problems = append(problems, "id must not have surrounding spaces")
	}
	return problems
}

// Validate runs struct and rule validation on g.
func (g *Game) Validate() error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGame, err)
	}
	if problems := g.Check(); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidGame, strings.Join(problems, "; "))
	}
	return nil
}

// Manager handles loading and caching of catalog entries
type Manager struct {
	dir   string
	games map[string]*Game
	mu    sync.RWMutex
}

// NewManager creates a catalog backed by dir, creating it if needed
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	return &Manager{
		dir:   dir,
		games: make(map[string]*Game),
	}, nil
}

// Dir returns the catalog directory
func (m *Manager) Dir() string {
	return m.dir
}

// Load loads a game by ID
func (m *Manager) Load(id string) (*Game, error) {
	if !validID(id) {
		return nil, ErrGameNotFound
	}

	m.mu.RLock()
	if game, exists := m.games[id]; exists {
		m.mu.RUnlock()
		return game, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if game, exists := m.games[id]; exists {
		return game, nil
	}

	data, err := os.ReadFile(m.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to read game file: %w", err)
	}

	var game Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("failed to parse game: %w", err)
	}
	if err := game.Validate(); err != nil {
		return nil, err
	}
	if game.ID != id {
		return nil, fmt.Errorf("%w: id %q does not match file name", ErrInvalidGame, game.ID)
	}

	m.games[id] = &game
	return &game, nil
}

// Exists reports whether id names a valid game. It implements
// broker.GameCatalog.
func (m *Manager) Exists(id string) bool {
	_, err := m.Load(id)
	return err == nil
}

// List returns every valid game ordered by ID. Invalid files are skipped.
func (m *Manager) List() ([]*Game, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}

	var games []*Game
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		game, err := m.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		games = append(games, game)
	}

	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

// Save writes game to disk
func (m *Manager) Save(game *Game) error {
	if game == nil {
		return ErrInvalidGame
	}
	if err := game.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(game, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal game: %w", err)
	}

	if err := os.WriteFile(m.path(game.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write game file: %w", err)
	}

	saved := *game
	m.mu.Lock()
	m.games[game.ID] = &saved
	m.mu.Unlock()

	return nil
}

// Delete removes a game from disk and from the cache
func (m *Manager) Delete(id string) error {
	if !validID(id) {
		return ErrGameNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.games, id)
	if err := os.Remove(m.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrGameNotFound
		}
		return fmt.Errorf("failed to remove game file: %w", err)
	}
	return nil
}

// Refresh drops the cache so the next reads go back to disk
func (m *Manager) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = make(map[string]*Game)
}

// Check validates every file in the catalog directory
func (m *Manager) Check() ([]validate.ValidationResult, error) {
	return CheckDir(m.dir)
}

// CheckDir validates every catalog file in dir
func CheckDir(dir string) ([]validate.ValidationResult, error) {
	return validate.CheckDir(dir, func() interface{} { return &Game{} })
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".json")
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\:`) && id != "." && id != ".."
}
