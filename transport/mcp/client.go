package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/matchbroker/lobby/broker"
	"github.com/wricardo/matchbroker/lobby/catalog"
	"github.com/wricardo/matchbroker/lobby/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"matchbroker",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`matchbroker - MCP Interface

This is a thin client that proxies all requests to the matchbroker REST API.
Players are matched over WebSocket; these tools let you inspect the lobby and
manage the game catalog.

ROOM STATES:
- waiting: one player is in the room, waiting for an opponent
- accepting: two players are in the room and must both accept

AVAILABLE TOOLS:
- list_rooms: Snapshot of every tracked room, optionally filtered
- someone_waiting: Whether any room for a game is waiting
- room_joinable: Whether any room for a game exists, waiting or accepting
- list_games: List the game catalog
- delete_game: Delete a game; its rooms are dissolved and players notified
- list_matches: List rooms both players accepted
- get_match: Details of one finalized match`),
	)

	c.registerTools()
}

func (c *Client) registerTools() {
	gameIDProperty := map[string]interface{}{
		"type":        "string",
		"description": "Game ID",
	}

	// Lobby
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List tracked matchmaking rooms",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Only rooms for this game (optional)",
				},
				"state": map[string]interface{}{
					"type":        "string",
					"description": "Only rooms in this state (optional)",
					"enum":        []string{"waiting", "accepting"},
				},
			},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "someone_waiting",
		Description: "Report whether any room for the game is waiting",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"game_id": gameIDProperty},
			Required:   []string{"game_id"},
		},
	}, c.handleSomeoneWaiting)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_joinable",
		Description: "Report whether any room for the game exists, waiting or accepting",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"game_id": gameIDProperty},
			Required:   []string{"game_id"},
		},
	}, c.handleRoomJoinable)

	// Catalog
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List the games players can matchmake for",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListGames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_game",
		Description: "Delete a game from the catalog and dissolve its rooms",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"game_id": gameIDProperty},
			Required:   []string{"game_id"},
		},
	}, c.handleDeleteGame)

	// Matches
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_matches",
		Description: "List finalized matches, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Only matches for this game (optional)",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of matches to return (optional)",
				},
			},
		},
	}, c.handleListMatches)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_match",
		Description: "Get details of a finalized match",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": map[string]interface{}{
					"type":        "string",
					"description": "Match ID",
				},
			},
			Required: []string{"match_id"},
		},
	}, c.handleGetMatch)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func requireString(args map[string]interface{}, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := url.Values{}
	if gameID, _ := args["game_id"].(string); gameID != "" {
		query.Set("game", gameID)
	}
	if state, _ := args["state"].(string); state != "" {
		query.Set("state", state)
	}
	path := "/api/rooms"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count int               `json:"count"`
		Rooms []broker.RoomView `json:"rooms"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRooms(response.Rooms)), nil
}

func (c *Client) handleSomeoneWaiting(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := requireString(arguments(request), "game_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Waiting bool `json:"waiting"`
	}
	if err := c.apiCall(ctx, "GET", "/api/games/"+url.PathEscape(gameID)+"/waiting", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Waiting {
		return mcp.NewToolResultText(fmt.Sprintf("Yes, a player is waiting for %s.", gameID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("No, nobody is waiting for %s.", gameID)), nil
}

func (c *Client) handleRoomJoinable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := requireString(arguments(request), "game_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Joinable bool `json:"joinable"`
	}
	if err := c.apiCall(ctx, "GET", "/api/games/"+url.PathEscape(gameID)+"/joinable", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Joinable {
		return mcp.NewToolResultText(fmt.Sprintf("Yes, a %s room is open or being negotiated.", gameID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("No, there are no %s rooms.", gameID)), nil
}

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var games []catalog.Game
	if err := c.apiCall(ctx, "GET", "/api/games", nil, &games); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(games) == 0 {
		return mcp.NewToolResultText("The catalog is empty."), nil
	}

	result := fmt.Sprintf("Games (%d):\n\n", len(games))
	for _, g := range games {
		result += fmt.Sprintf("• %s (%s)\n", g.ID, g.Name)
		if g.Description != "" {
			result += fmt.Sprintf("  %s\n", g.Description)
		}
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleDeleteGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := requireString(arguments(request), "game_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := c.apiCall(ctx, "DELETE", "/api/games/"+url.PathEscape(gameID), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Deleted game %s. Its rooms were dissolved and players notified.", gameID)), nil
}

func (c *Client) handleListMatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := url.Values{}
	if gameID, _ := args["game_id"].(string); gameID != "" {
		query.Set("game", gameID)
	}
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", int(limit)))
	}
	path := "/api/matches"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count   int              `json:"count"`
		Total   int              `json:"total"`
		Matches []*session.Match `json:"matches"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Matches (%d of %d):\n\n", response.Count, response.Total)
	for _, m := range response.Matches {
		result += fmt.Sprintf("- %s %s [%s] created %s\n",
			m.ID, m.GameID, strings.Join(m.Players, " vs "), m.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matchID, err := requireString(arguments(request), "match_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var match session.Match
	if err := c.apiCall(ctx, "GET", "/api/matches/"+url.PathEscape(matchID), nil, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMatch(&match)), nil
}

func formatRooms(rooms []broker.RoomView) string {
	if len(rooms) == 0 {
		return "No rooms are open."
	}

	result := fmt.Sprintf("Rooms (%d):\n\n", len(rooms))
	for _, r := range rooms {
		result += fmt.Sprintf("- %s [%s] game=%s members=%d since %s\n",
			r.ChannelID, r.State, r.GameID, len(r.Members), r.CreatedAt.Format("15:04:05"))
	}
	return result
}

func formatMatch(m *session.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match %s\n", m.ID)
	fmt.Fprintf(&b, "Game: %s\n", m.GameID)
	fmt.Fprintf(&b, "Channel: %s\n", m.ChannelID)
	fmt.Fprintf(&b, "Players: %s\n", strings.Join(m.Players, ", "))
	fmt.Fprintf(&b, "Created: %s\n", m.CreatedAt.Format(time.RFC3339))
	if m.OpponentLeft {
		b.WriteString("A player has left the game.\n")
	}
	return b.String()
}
