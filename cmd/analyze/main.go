// Command analyze prints quick, human-readable statistics about the match
// archive: matches per game, how many ended with a player leaving, and the
// busiest players.
//
// Usage:
//
//	analyze [archive-dir]
//
// The directory defaults to "matches".
package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/wricardo/matchbroker/lobby/session"
)

// GameStats summarizes the archived matches of one game.
type GameStats struct {
	GameID       string
	Matches      int
	OpponentLeft int
	Players      map[string]int
}

// LeftRate is the share of matches in which a player left, from 0 to 1.
func (g *GameStats) LeftRate() float64 {
	if g.Matches == 0 {
		return 0
	}
	return float64(g.OpponentLeft) / float64(g.Matches)
}

func main() {
	dir := "matches"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	stats, err := analyzeArchive(dir)
	if err != nil {
		fmt.Printf("Error reading archive: %v\n", err)
		os.Exit(1)
	}
	printReport(os.Stdout, stats)
}

// analyzeArchive loads every archived match in dir and groups them by game.
// Unreadable files are skipped.
func analyzeArchive(dir string) ([]*GameStats, error) {
	fp, err := session.NewFilePersistence(dir)
	if err != nil {
		return nil, err
	}
	ids, err := fp.ListAll()
	if err != nil {
		return nil, err
	}

	byGame := make(map[string]*GameStats)
	for _, id := range ids {
		match, err := fp.Load(id)
		if err != nil {
			continue
		}

		g, ok := byGame[match.GameID]
		if !ok {
			g = &GameStats{GameID: match.GameID, Players: make(map[string]int)}
			byGame[match.GameID] = g
		}
		g.Matches++
		if match.OpponentLeft {
			g.OpponentLeft++
		}
		for _, p := range match.Players {
			g.Players[p]++
		}
	}

	stats := make([]*GameStats, 0, len(byGame))
	for _, g := range byGame {
		stats = append(stats, g)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Matches != stats[j].Matches {
			return stats[i].Matches > stats[j].Matches
		}
		return stats[i].GameID < stats[j].GameID
	})
	return stats, nil
}

// topPlayers returns up to n player ids ordered by match count.
func topPlayers(players map[string]int, n int) []string {
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if players[ids[i]] != players[ids[j]] {
			return players[ids[i]] > players[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

func printReport(w io.Writer, stats []*GameStats) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No archived matches found")
		return
	}

	for _, g := range stats {
		fmt.Fprintf(w, "\n=== %s ===\n", g.GameID)
		fmt.Fprintf(w, "Matches: %d\n", g.Matches)
		fmt.Fprintf(w, "Distinct players: %d\n", len(g.Players))

		if g.LeftRate() > 0.5 {
			fmt.Fprintf(w, "⚠️  WARNING: a player left in %d of %d matches\n", g.OpponentLeft, g.Matches)
		} else {
			fmt.Fprintf(w, "✅ Players stayed in %d of %d matches\n", g.Matches-g.OpponentLeft, g.Matches)
		}

		for _, p := range topPlayers(g.Players, 3) {
			fmt.Fprintf(w, "   %s: %d matches\n", p, g.Players[p])
		}
	}
}
