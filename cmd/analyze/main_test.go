package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/matchbroker/lobby/session"
)

func archive(t *testing.T, dir string, matches ...*session.Match) {
	t.Helper()
	fp, err := session.NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}
	for _, m := range matches {
		if err := fp.Save(m); err != nil {
			t.Fatalf("Failed to save match: %v", err)
		}
	}
}

func TestAnalyzeArchive(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	archive(t, dir,
		&session.Match{ID: "m1", GameID: "chess", Players: []string{"a", "b"}, CreatedAt: now},
		&session.Match{ID: "m2", GameID: "chess", Players: []string{"a", "c"}, CreatedAt: now, OpponentLeft: true},
		&session.Match{ID: "m3", GameID: "go", Players: []string{"d", "e"}, CreatedAt: now},
	)

	stats, err := analyzeArchive(dir)
	if err != nil {
		t.Fatalf("analyzeArchive failed: %v", err)
	}

	if len(stats) != 2 {
		t.Fatalf("Expected 2 games, got %d", len(stats))
	}
	if stats[0].GameID != "chess" || stats[0].Matches != 2 {
		t.Errorf("Expected chess with 2 matches first, got %s with %d", stats[0].GameID, stats[0].Matches)
	}
	if stats[0].OpponentLeft != 1 {
		t.Errorf("Expected 1 abandoned chess match, got %d", stats[0].OpponentLeft)
	}
	if stats[0].Players["a"] != 2 {
		t.Errorf("Expected player a in 2 matches, got %d", stats[0].Players["a"])
	}
	if rate := stats[0].LeftRate(); rate != 0.5 {
		t.Errorf("Expected left rate 0.5, got %v", rate)
	}
}

func TestTopPlayers(t *testing.T) {
	players := map[string]int{"a": 1, "b": 3, "c": 3, "d": 2}

	got := topPlayers(players, 3)
	expected := []string{"b", "c", "d"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, got)
			break
		}
	}
}

func TestPrintReport(t *testing.T) {
	t.Run("empty archive", func(t *testing.T) {
		var buf bytes.Buffer
		printReport(&buf, nil)
		if !strings.Contains(buf.String(), "No archived matches") {
			t.Errorf("Expected empty message, got: %s", buf.String())
		}
	})

	t.Run("warns on abandoned games", func(t *testing.T) {
		var buf bytes.Buffer
		printReport(&buf, []*GameStats{{
			GameID:       "chess",
			Matches:      2,
			OpponentLeft: 2,
			Players:      map[string]int{"a": 2},
		}})
		if !strings.Contains(buf.String(), "WARNING") {
			t.Errorf("Expected warning, got: %s", buf.String())
		}
	})
}
