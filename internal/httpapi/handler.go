// Package httpapi exposes the game commands over HTTP.
//
// Callers are platform bridges that have already established who the player
// is; the identity travels in the X-Player-ID and X-Player-Name headers.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/grant"
	"github.com/aether-games/echoes-engine/internal/guard"
	"github.com/aether-games/echoes-engine/internal/workflow"
)

// Identity headers.
const (
	HeaderPlayerID   = "X-Player-ID"
	HeaderPlayerName = "X-Player-Name"
)

// Game is the coordinator surface the handlers drive.
type Game interface {
	StartLobby(ctx context.Context, groupID string) (domain.Outcome, error)
	Join(ctx context.Context, groupID, playerID, name string) (domain.Outcome, error)
	Flee(ctx context.Context, groupID, playerID string) (domain.Outcome, error)
	ExtendLobby(ctx context.Context, groupID string) (domain.Outcome, error)
	ForceBegin(ctx context.Context, groupID string) (domain.Outcome, error)
	Cancel(ctx context.Context, groupID string) (domain.Outcome, error)
	Advance(ctx context.Context, groupID string) (domain.Outcome, error)
	HandleAction(ctx context.Context, in workflow.Inbound) (domain.Outcome, error)
	ObserveMessage(ctx context.Context, groupID, playerID, text string)
	SubmitTask(ctx context.Context, playerID, code string) (domain.Outcome, error)
	ListTasks(ctx context.Context, playerID string) (domain.Outcome, error)
	AbandonTask(ctx context.Context, playerID string) (domain.Outcome, error)
	Describe(groupID string) (workflow.View, error)
}

// Groups manages the set of groups allowed to host games.
type Groups interface {
	AuthorizeGroup(ctx context.Context, groupID, by string) (bool, error)
	DeauthorizeGroup(ctx context.Context, groupID string) (bool, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Game   Game
	Guard  *guard.Guard
	Groups Groups
	Grants *grant.Signer
}

// NewHandler creates a new handler.
func NewHandler(game Game, g *guard.Guard, groups Groups, grants *grant.Signer) *Handler {
	return &Handler{Game: game, Guard: g, Groups: groups, Grants: grants}
}

// RegisterRoutes registers the routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/v1/groups/:group_id")
	g.GET("/game", h.GetGame)
	g.POST("/game", h.StartGame)
	g.DELETE("/game", h.CancelGame)
	g.POST("/game/join", h.JoinGame)
	g.POST("/game/flee", h.FleeGame)
	g.POST("/game/extend", h.ExtendGame)
	g.POST("/game/forcestart", h.ForceStart)
	g.POST("/game/advance", h.AdvanceGame)
	g.POST("/messages", h.PostMessage)
	g.POST("/grant", h.GroupGrant)
	g.PUT("/authorization", h.AuthorizeGroup)
	g.DELETE("/authorization", h.DeauthorizeGroup)

	e.POST("/v1/actions", h.PostAction)
	e.GET("/v1/tasks", h.ListTasks)
	e.POST("/v1/tasks/submit", h.SubmitTask)
	e.POST("/v1/tasks/abandon", h.AbandonTask)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// OutcomeResponse carries the user-facing text of a successful command.
type OutcomeResponse struct {
	Text  string `json:"text"`
	Grant string `json:"grant,omitempty"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func actor(c echo.Context) (id, name string, err error) {
	id = c.Request().Header.Get(HeaderPlayerID)
	if id == "" {
		return "", "", domain.ErrUnauthorized
	}
	name = c.Request().Header.Get(HeaderPlayerName)
	if name == "" {
		name = "user" + id
	}
	return id, name, nil
}

func respond(c echo.Context, out domain.Outcome, err error) error {
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OutcomeResponse{Text: out.Text})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, APIError{Code: http.StatusBadRequest, Message: msg})
}

// writeError maps an EngineError to an HTTP status.
func writeError(c echo.Context, err error) error {
	var engErr *domain.EngineError
	if !errors.As(err, &engErr) {
		c.Logger().Errorf("unhandled error: %v", err)
		return c.JSON(http.StatusInternalServerError, APIError{Code: http.StatusInternalServerError, Message: "internal error"})
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNoGame), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownAction), errors.Is(err, domain.ErrInvalidTarget):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrGroupUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrGrantInvalid):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimitExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrAlreadyExists), domain.IsPrecondition(err):
		status = http.StatusConflict
	}
	return c.JSON(status, APIError{Code: engErr.Code, Message: engErr.Message})
}
