package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/matchbroker/api"
	"github.com/wricardo/matchbroker/lobby/broker"
	"github.com/wricardo/matchbroker/lobby/catalog"
	"github.com/wricardo/matchbroker/lobby/session"
	"github.com/wricardo/matchbroker/transport/websocket"
)

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	if args == nil {
		args = map[string]interface{}{}
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected result, got nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("Expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL + "/")

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/games/chess/waiting" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"waiting": true})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var result struct {
		Waiting bool `json:"waiting"`
	}
	if err := client.apiCall(context.Background(), "GET", "/api/games/chess/waiting", nil, &result); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if !result.Waiting {
		t.Error("Expected waiting to be true")
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	err := client.apiCall(context.Background(), "GET", "/api/rooms", nil, nil)
	if err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "game not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall(context.Background(), "GET", "/api/games/nope", nil, nil)
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}
	if err.Error() != "game not found" {
		t.Errorf("Expected 'game not found', got %q", err.Error())
	}
}

func TestClient_requiredArguments(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	ctx := context.Background()

	tools := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		field   string
	}{
		{"someone_waiting", client.handleSomeoneWaiting, "game_id"},
		{"room_joinable", client.handleRoomJoinable, "game_id"},
		{"delete_game", client.handleDeleteGame, "game_id"},
		{"get_match", client.handleGetMatch, "match_id"},
	}

	for _, tt := range tools {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.handler(ctx, callTool(tt.name, nil))
			if err != nil {
				t.Fatalf("Expected tool error result, got error: %v", err)
			}
			if !result.IsError {
				t.Error("Expected IsError result")
			}
			if text := resultText(t, result); !strings.Contains(text, tt.field) {
				t.Errorf("Expected %s in error, got: %s", tt.field, text)
			}
		})
	}
}

func TestClient_listRoomsQuery(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 1,
			"rooms": []broker.RoomView{{
				GameID:    "chess",
				ChannelID: "room:chess:1",
				State:     "waiting",
				CreatedAt: time.Now(),
				Members:   []string{"a"},
			}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleListRooms(context.Background(), callTool("list_rooms", map[string]interface{}{
		"game_id": "chess",
		"state":   "waiting",
	}))
	if err != nil {
		t.Fatalf("list_rooms failed: %v", err)
	}

	if gotQuery != "game=chess&state=waiting" {
		t.Errorf("Expected query game=chess&state=waiting, got %s", gotQuery)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "room:chess:1") || !strings.Contains(text, "[waiting]") {
		t.Errorf("Expected room line in result, got: %s", text)
	}
}

func TestFormatRooms_Empty(t *testing.T) {
	if got := formatRooms(nil); got != "No rooms are open." {
		t.Errorf("Expected empty message, got %q", got)
	}
}

func TestFormatMatch(t *testing.T) {
	m := &session.Match{
		ID:           "m-1",
		GameID:       "chess",
		ChannelID:    "room:chess:1",
		Players:      []string{"a", "b"},
		CreatedAt:    time.Now(),
		OpponentLeft: true,
	}

	text := formatMatch(m)
	for _, want := range []string{"m-1", "chess", "room:chess:1", "a, b", "left the game"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output, got: %s", want, text)
		}
	}
}

// TestClient_Integration runs every tool against a real API server.
func TestClient_Integration(t *testing.T) {
	cat, err := catalog.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	if err := cat.Save(&catalog.Game{ID: "chess", Name: "Chess", MinPlayers: 2, MaxPlayers: 2}); err != nil {
		t.Fatalf("Failed to save game: %v", err)
	}

	matches := session.NewManager(nil)
	hub := websocket.NewHub(nil)
	b := broker.New(hub, broker.Options{Sink: matches, Catalog: cat})

	hubCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(hubCtx)

	server := httptest.NewServer(api.NewServer(api.Deps{
		Lobby:   b,
		Catalog: cat,
		Matches: matches,
		Hub:     hub,
	}))
	defer server.Close()

	player := connectPlayer(t, server.URL)

	client := NewClient(server.URL)
	ctx := context.Background()

	t.Run("list_games", func(t *testing.T) {
		result, _ := client.handleListGames(ctx, callTool("list_games", nil))
		if text := resultText(t, result); !strings.Contains(text, "chess (Chess)") {
			t.Errorf("Expected chess in catalog, got: %s", text)
		}
	})

	t.Run("someone_waiting before and after", func(t *testing.T) {
		args := map[string]interface{}{"game_id": "chess"}

		result, _ := client.handleSomeoneWaiting(ctx, callTool("someone_waiting", args))
		if text := resultText(t, result); !strings.HasPrefix(text, "No") {
			t.Errorf("Expected nobody waiting, got: %s", text)
		}

		if _, err := b.StartMatchmaking("chess", player); err != nil {
			t.Fatalf("StartMatchmaking failed: %v", err)
		}

		result, _ = client.handleSomeoneWaiting(ctx, callTool("someone_waiting", args))
		if text := resultText(t, result); !strings.HasPrefix(text, "Yes") {
			t.Errorf("Expected someone waiting, got: %s", text)
		}

		result, _ = client.handleRoomJoinable(ctx, callTool("room_joinable", args))
		if text := resultText(t, result); !strings.HasPrefix(text, "Yes") {
			t.Errorf("Expected room joinable, got: %s", text)
		}
	})

	t.Run("list_rooms", func(t *testing.T) {
		result, _ := client.handleListRooms(ctx, callTool("list_rooms", nil))
		if text := resultText(t, result); !strings.Contains(text, "Rooms (1)") {
			t.Errorf("Expected one room, got: %s", text)
		}
	})

	t.Run("list_matches and get_match", func(t *testing.T) {
		match, err := matches.Create("chess", "room:chess:99", []string{"a", "b"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		result, _ := client.handleListMatches(ctx, callTool("list_matches", map[string]interface{}{
			"game_id": "chess",
			"limit":   float64(5),
		}))
		if text := resultText(t, result); !strings.Contains(text, match.ID) {
			t.Errorf("Expected match %s listed, got: %s", match.ID, text)
		}

		result, _ = client.handleGetMatch(ctx, callTool("get_match", map[string]interface{}{"match_id": match.ID}))
		if text := resultText(t, result); !strings.Contains(text, "a, b") {
			t.Errorf("Expected players in match details, got: %s", text)
		}

		result, _ = client.handleGetMatch(ctx, callTool("get_match", map[string]interface{}{"match_id": "missing"}))
		if !result.IsError {
			t.Error("Expected error for unknown match")
		}
	})

	t.Run("delete_game", func(t *testing.T) {
		result, _ := client.handleDeleteGame(ctx, callTool("delete_game", map[string]interface{}{"game_id": "chess"}))
		if result.IsError {
			t.Fatalf("Expected success, got: %s", resultText(t, result))
		}
		if len(b.Snapshot()) != 0 {
			t.Errorf("Expected rooms dissolved, got %d", len(b.Snapshot()))
		}

		result, _ = client.handleDeleteGame(ctx, callTool("delete_game", map[string]interface{}{"game_id": "chess"}))
		if !result.IsError {
			t.Error("Expected error deleting a missing game")
		}
	})
}

// connectPlayer opens a websocket connection to the server and returns the
// connection id from its greeting
func connectPlayer(t *testing.T, baseURL string) string {
	t.Helper()
	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var greeting struct {
		Data websocket.Connected `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("Failed to read greeting: %v", err)
	}
	if greeting.Data.ConnectionID == "" {
		t.Fatal("Expected connection id in greeting")
	}
	return greeting.Data.ConnectionID
}
