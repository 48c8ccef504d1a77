package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func createValidGame(id string) *Game {
	return &Game{
		ID:          id,
		Name:        "Test " + id,
		Description: "Test game",
		MinPlayers:  1,
		MaxPlayers:  2,
	}
}

func writeGameFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestNewManager(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "catalog")

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if manager.Dir() != dir {
		t.Errorf("Expected dir %s, got %s", dir, manager.Dir())
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected catalog directory to be created: %v", err)
	}
}

func TestManager_SaveAndLoad(t *testing.T) {
	manager, _ := NewManager(t.TempDir())

	t.Run("save valid game", func(t *testing.T) {
		if err := manager.Save(createValidGame("chess")); err != nil {
			t.Fatalf("Failed to save game: %v", err)
		}
		if _, err := os.Stat(filepath.Join(manager.Dir(), "chess.json")); err != nil {
			t.Errorf("Expected game file: %v", err)
		}
	})

	t.Run("load saved game", func(t *testing.T) {
		game, err := manager.Load("chess")
		if err != nil {
			t.Fatalf("Failed to load game: %v", err)
		}
		if game.Name != "Test chess" {
			t.Errorf("Expected name 'Test chess', got '%s'", game.Name)
		}
	})

	t.Run("load after refresh reads disk", func(t *testing.T) {
		manager.Refresh()
		if !manager.Exists("chess") {
			t.Error("Expected chess to exist after refresh")
		}
	})

	t.Run("missing game", func(t *testing.T) {
		if _, err := manager.Load("checkers"); !errors.Is(err, ErrGameNotFound) {
			t.Errorf("Expected ErrGameNotFound, got %v", err)
		}
		if manager.Exists("checkers") {
			t.Error("Expected checkers not to exist")
		}
	})

	t.Run("path traversal is rejected", func(t *testing.T) {
		for _, id := range []string{"", "../chess", "a/b", `a\b`, ".."} {
			if _, err := manager.Load(id); !errors.Is(err, ErrGameNotFound) {
				t.Errorf("Expected ErrGameNotFound for %q, got %v", id, err)
			}
		}
	})
}

func TestManager_SaveInvalid(t *testing.T) {
	manager, _ := NewManager(t.TempDir())

	tests := []struct {
		name string
		edit func(g *Game)
	}{
		{"missing id", func(g *Game) { g.ID = "" }},
		{"missing name", func(g *Game) { g.Name = "" }},
		{"party of four", func(g *Game) { g.MaxPlayers = 4 }},
		{"no players", func(g *Game) { g.MinPlayers = 0 }},
		{"id with slash", func(g *Game) { g.ID = "a/b" }},
		{"id with spaces", func(g *Game) { g.ID = " chess" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := createValidGame("chess")
			tt.edit(game)
			if err := manager.Save(game); !errors.Is(err, ErrInvalidGame) {
				t.Errorf("Expected ErrInvalidGame, got %v", err)
			}
		})
	}

	if err := manager.Save(nil); !errors.Is(err, ErrInvalidGame) {
		t.Errorf("Expected ErrInvalidGame for nil game, got %v", err)
	}
}

func TestManager_LoadInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writeGameFile(t, dir, "broken.json", `{"id": `)
	writeGameFile(t, dir, "party.json", `{"id": "party", "name": "Party", "min_players": 2, "max_players": 6}`)
	writeGameFile(t, dir, "renamed.json", `{"id": "other", "name": "Other", "min_players": 2, "max_players": 2}`)

	manager, _ := NewManager(dir)

	if _, err := manager.Load("broken"); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := manager.Load("party"); !errors.Is(err, ErrInvalidGame) {
		t.Errorf("Expected ErrInvalidGame, got %v", err)
	}
	if _, err := manager.Load("renamed"); !errors.Is(err, ErrInvalidGame) {
		t.Errorf("Expected ErrInvalidGame for mismatched id, got %v", err)
	}
}

func TestManager_List(t *testing.T) {
	dir := t.TempDir()
	manager, _ := NewManager(dir)
	manager.Save(createValidGame("go"))
	manager.Save(createValidGame("chess"))
	writeGameFile(t, dir, "broken.json", `nope`)
	writeGameFile(t, dir, "README.md", `# games`)

	games, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list games: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("Expected 2 games, got %d", len(games))
	}
	if games[0].ID != "chess" || games[1].ID != "go" {
		t.Errorf("Expected games ordered by id, got %s, %s", games[0].ID, games[1].ID)
	}
}

func TestManager_Delete(t *testing.T) {
	manager, _ := NewManager(t.TempDir())
	manager.Save(createValidGame("chess"))

	if err := manager.Delete("chess"); err != nil {
		t.Fatalf("Failed to delete game: %v", err)
	}
	if manager.Exists("chess") {
		t.Error("Expected chess to be gone")
	}
	if err := manager.Delete("chess"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("Expected ErrGameNotFound, got %v", err)
	}
}

func TestManager_Check(t *testing.T) {
	dir := t.TempDir()
	manager, _ := NewManager(dir)
	manager.Save(createValidGame("chess"))
	writeGameFile(t, dir, "party.json", `{"id": "party", "name": "Party", "min_players": 3, "max_players": 2}`)

	results, err := manager.Check()
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	byFile := map[string]bool{}
	for _, r := range results {
		byFile[r.File] = r.Valid
	}
	if !byFile["chess.json"] {
		t.Error("Expected chess.json to be valid")
	}
	if byFile["party.json"] {
		t.Error("Expected party.json to be invalid")
	}
}

func TestManager_ConcurrentLoad(t *testing.T) {
	manager, _ := NewManager(t.TempDir())
	manager.Save(createValidGame("chess"))
	manager.Refresh()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := manager.Load("chess"); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}()
	}
	wg.Wait()
}
