package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MatchPersistence defines the interface for archiving matches
type MatchPersistence interface {
	// Save persists a match to storage
	Save(match *Match) error

	// Load retrieves a match from storage by ID
	Load(id string) (*Match, error)

	// Delete removes a match from storage
	Delete(id string) error

	// ListAll returns all archived match IDs
	ListAll() ([]string, error)

	// Exists checks if a match exists in storage
	Exists(id string) bool
}

// FilePersistence implements MatchPersistence with one JSON file per match
type FilePersistence struct {
	dir string
}

// NewFilePersistence creates a file-based match archive in dir
func NewFilePersistence(dir string) (*FilePersistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create matches directory: %w", err)
	}
	return &FilePersistence{dir: dir}, nil
}

// Save writes match to <dir>/<id>.json
func (fp *FilePersistence) Save(match *Match) error {
	if match == nil {
		return fmt.Errorf("match cannot be nil")
	}

	data, err := json.MarshalIndent(match, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}

	if err := os.WriteFile(fp.path(match.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write match file: %w", err)
	}
	return nil
}

// Load reads a match file
func (fp *FilePersistence) Load(id string) (*Match, error) {
	data, err := os.ReadFile(fp.path(id))
	if os.IsNotExist(err) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read match file: %w", err)
	}

	var match Match
	if err := json.Unmarshal(data, &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}
	return &match, nil
}

// Delete removes a match file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrMatchNotFound
	}
	if err := os.Remove(fp.path(id)); err != nil {
		return fmt.Errorf("failed to remove match file: %w", err)
	}
	return nil
}

// ListAll returns the IDs of every archived match
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read matches directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return ids, nil
}

// Exists checks if a match file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.path(id))
	return err == nil
}

func (fp *FilePersistence) path(id string) string {
	return filepath.Join(fp.dir, filepath.Base(id)+".json")
}
