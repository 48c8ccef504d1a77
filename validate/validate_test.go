package validate

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type request struct {
	GameID     string `json:"gameId" validate:"required,max=8"`
	PlayerName string `json:"playerName" validate:"required"`
}

type entry struct {
	Name  string `json:"name" validate:"required"`
	Seats int    `json:"seats" validate:"eq=2"`
}

func (e *entry) Check() []string {
	if strings.HasPrefix(e.Name, "_") {
		return []string{"name must not start with an underscore"}
	}
	return nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		if err := Struct(request{GameID: "chess", PlayerName: "Xavier"}); err != nil {
			t.Errorf("Expected valid request, got %v", err)
		}
	})

	t.Run("missing fields use json names", func(t *testing.T) {
		err := Struct(request{})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("Expected ErrValidation, got %v", err)
		}
		if !strings.Contains(err.Error(), "gameId is required") {
			t.Errorf("Expected gameId message, got %q", err.Error())
		}
		if !strings.Contains(err.Error(), "playerName is required") {
			t.Errorf("Expected playerName message, got %q", err.Error())
		}
	})

	t.Run("too long", func(t *testing.T) {
		err := Struct(request{GameID: "much-too-long", PlayerName: "X"})
		if err == nil || !strings.Contains(err.Error(), "gameId must be at most 8 characters") {
			t.Errorf("Expected length message, got %v", err)
		}
	})
}

func TestPartial(t *testing.T) {
	if err := Partial(request{GameID: "chess"}, "GameID"); err != nil {
		t.Errorf("Expected partial validation to ignore playerName, got %v", err)
	}
	if err := Partial(request{PlayerName: "X"}, "GameID"); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.json", `{"name": "chess", "seats": 2}`)
	writeFile(t, dir, "seats.json", `{"name": "party", "seats": 4}`)
	writeFile(t, dir, "rule.json", `{"name": "_hidden", "seats": 2}`)
	writeFile(t, dir, "broken.json", `{"name": `)

	tests := []struct {
		file    string
		valid   bool
		message string
	}{
		{"good.json", true, "✓"},
		{"seats.json", false, "seats must be 2"},
		{"rule.json", false, "underscore"},
		{"broken.json", false, "Invalid JSON"},
		{"missing.json", false, "Failed to read file"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			result := CheckFile(filepath.Join(dir, tt.file), &entry{})
			if result.Valid != tt.valid {
				t.Errorf("Expected valid=%v, got %v (%v)", tt.valid, result.Valid, result.Messages)
			}
			if result.File != tt.file {
				t.Errorf("Expected file %s, got %s", tt.file, result.File)
			}
			if !strings.Contains(strings.Join(result.Messages, "\n"), tt.message) {
				t.Errorf("Expected message containing %q, got %v", tt.message, result.Messages)
			}
		})
	}
}

func TestCheckDirAndReport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"name": "chess", "seats": 2}`)
	writeFile(t, dir, "b.json", `{"name": "go", "seats": 2}`)
	writeFile(t, dir, "notes.txt", `ignored`)

	results, err := CheckDir(dir, func() interface{} { return &entry{} })
	if err != nil {
		t.Fatalf("CheckDir failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	var buf bytes.Buffer
	if !WriteReport(&buf, results) {
		t.Errorf("Expected all valid, report:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "All catalog entries are valid") {
		t.Errorf("Unexpected report:\n%s", buf.String())
	}

	writeFile(t, dir, "c.json", `{"seats": 3}`)
	results, _ = CheckDir(dir, func() interface{} { return &entry{} })

	buf.Reset()
	if WriteReport(&buf, results) {
		t.Error("Expected report to flag c.json")
	}
	if !strings.Contains(buf.String(), "❌ INVALID") {
		t.Errorf("Unexpected report:\n%s", buf.String())
	}
}

func TestWriteReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if !WriteReport(&buf, nil) {
		t.Error("Expected empty report to be valid")
	}
	if !strings.Contains(buf.String(), "No catalog files found") {
		t.Errorf("Unexpected report:\n%s", buf.String())
	}
}
