// Package mcp serves MCP over the streamable HTTP transport: one JSON-RPC
// message per POST, JSON responses, sessions in the Mcp-Session-Id header.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/render"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"mcp-tools-go/internal/jsonrpc"
	"mcp-tools-go/internal/session"
	"mcp-tools-go/internal/tools"
)

// LatestProtocolVersion is offered when the client asks for a version we do not speak.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists the protocol revisions accepted by initialize.
var SupportedProtocolVersions = []string{LatestProtocolVersion, "2025-03-26", "2024-11-05"}

const maxBodyBytes = 4 << 20

// ToolCaller is the subset of the tool registry the handler needs.
type ToolCaller interface {
	Definitions() []*sdk.Tool
	Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
}

// Config contains the handler configuration.
type Config struct {
	ServerName     string
	ServerVersion  string
	Instructions   string
	RequireSession bool
}

// Handler answers MCP requests on a single endpoint.
type Handler struct {
	tools    ToolCaller
	sessions session.SessionManager
	config   Config
	logger   zerolog.Logger
}

// NewHandler creates an MCP handler.
func NewHandler(tools ToolCaller, sessions session.SessionManager, config Config, logger zerolog.Logger) *Handler {
	return &Handler{
		tools:    tools,
		sessions: sessions,
		config:   config,
		logger:   logger.With().Str("component", "mcp").Logger(),
	}
}

type initializeParams struct {
	ProtocolVersion string              `json:"protocolVersion"`
	ClientInfo      *sdk.Implementation `json:"clientInfo"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// HandlePost processes one JSON-RPC message.
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeRPCError(w, r, http.StatusBadRequest, nil, jsonrpc.NewError(jsonrpc.ParseError, "could not read request body", nil))
		return
	}

	msg, err := jsonrpc.ParseMessage(body)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if !errors.As(err, &rpcErr) {
			rpcErr = jsonrpc.NewError(jsonrpc.InternalError, err.Error(), nil)
		}
		h.logger.Debug().Err(err).Msg("Rejected message")
		h.writeRPCError(w, r, http.StatusBadRequest, nil, rpcErr)
		return
	}

	switch m := msg.(type) {
	case *jsonrpc.Request:
		if m.Method == "initialize" {
			h.initialize(w, r, m)
			return
		}
		if !h.checkSession(w, r) {
			return
		}
		result, rpcErr := h.dispatch(r.Context(), m)
		if rpcErr != nil {
			h.writeRPCError(w, r, http.StatusOK, m.ID, rpcErr)
			return
		}
		render.JSON(w, r, jsonrpc.NewResponse(m.ID, result))

	case *jsonrpc.Notification:
		if !h.checkSession(w, r) {
			return
		}
		h.logger.Debug().Str("method", m.Method).Msg("Notification received")
		w.WriteHeader(http.StatusAccepted)

	case *jsonrpc.Response:
		// The server never sends requests, so client responses are only acknowledged.
		w.WriteHeader(http.StatusAccepted)
	}
}

// HandleDelete terminates the session named in the request header.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(session.HeaderName)
	if sessionID == "" {
		session.SendError(w, r, http.StatusBadRequest, "Missing session ID header", map[string]any{
			"required_header": session.HeaderName,
		})
		return
	}

	if err := h.sessions.DeleteSession(r.Context(), sessionID); err != nil {
		status := http.StatusInternalServerError
		if session.CodeOf(err) == session.ErrSessionNotFound {
			status = http.StatusNotFound
		}
		session.SendError(w, r, status, err.Error(), map[string]any{
			"session_id": sessionID,
			"error_code": session.CodeOf(err),
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGet refuses the optional server-to-client stream; this server never
// initiates messages.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, DELETE")
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request, req *jsonrpc.Request) {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			h.writeRPCError(w, r, http.StatusOK, req.ID, jsonrpc.NewError(jsonrpc.InvalidParams, "invalid initialize params", err.Error()))
			return
		}
	}

	version := negotiateVersion(params.ProtocolVersion)
	clientInfo := session.ClientInfo{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
	if params.ClientInfo != nil {
		clientInfo.Name = params.ClientInfo.Name
		clientInfo.Version = params.ClientInfo.Version
	}

	sess, err := h.sessions.CreateSession(r.Context(), clientInfo, version)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create session")
		h.writeRPCError(w, r, http.StatusInternalServerError, req.ID, jsonrpc.NewError(jsonrpc.InternalError, "failed to create session", nil))
		return
	}
	w.Header().Set(session.HeaderName, sess.ID)

	result := &sdk.InitializeResult{
		ProtocolVersion: version,
		Capabilities: &sdk.ServerCapabilities{
			Tools: &sdk.ToolCapabilities{ListChanged: false},
		},
		ServerInfo: &sdk.Implementation{
			Name:    h.config.ServerName,
			Version: h.config.ServerVersion,
		},
		Instructions: h.config.Instructions,
	}

	h.logger.Info().
		Str("session_id", sess.ID).
		Str("client", clientInfo.Name).
		Str("requested_version", params.ProtocolVersion).
		Str("protocol_version", version).
		Msg("Client initialized")

	render.JSON(w, r, jsonrpc.NewResponse(req.ID, result))
}

func (h *Handler) dispatch(ctx context.Context, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	switch req.Method {
	case "ping":
		return struct{}{}, nil

	case "tools/list":
		return &sdk.ListToolsResult{Tools: h.tools.Definitions()}, nil

	case "tools/call":
		var params callToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return nil, jsonrpc.NewError(jsonrpc.InvalidParams, "tools/call requires a tool name", nil)
		}
		return h.callTool(ctx, params)

	default:
		return nil, jsonrpc.NewError(jsonrpc.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}
}

// callTool runs a tool. Tool failures become results with IsError set so the
// model can see them; only an unknown tool is a protocol error.
func (h *Handler) callTool(ctx context.Context, params callToolParams) (any, *jsonrpc.Error) {
	out, err := h.tools.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		var toolErr *tools.Error
		if errors.As(err, &toolErr) && toolErr.Code == tools.ErrToolNotFound {
			return nil, jsonrpc.NewError(jsonrpc.InvalidParams, fmt.Sprintf("unknown tool: %s", params.Name), nil)
		}

		h.logger.Warn().
			Err(err).
			Str("tool", params.Name).
			Msg("Tool call failed")
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: err.Error()}},
			IsError: true,
		}, nil
	}

	result := &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: string(out)}},
	}
	if len(out) > 0 && out[0] == '{' {
		result.StructuredContent = out
	}
	return result, nil
}

// checkSession enforces that requests after initialize carry a session.
// Invalid session headers were already rejected by the session middleware.
func (h *Handler) checkSession(w http.ResponseWriter, r *http.Request) bool {
	if !h.config.RequireSession {
		return true
	}
	if _, ok := session.GetSessionFromContext(r.Context()); ok {
		return true
	}
	session.SendError(w, r, http.StatusBadRequest, "Missing session ID header", map[string]any{
		"required_header": session.HeaderName,
	})
	return false
}

func (h *Handler) writeRPCError(w http.ResponseWriter, r *http.Request, status int, id any, rpcErr *jsonrpc.Error) {
	render.Status(r, status)
	render.JSON(w, r, jsonrpc.NewErrorResponse(id, rpcErr))
}

func negotiateVersion(requested string) string {
	for _, v := range SupportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return LatestProtocolVersion
}
