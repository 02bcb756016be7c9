package httpapi

import (
	"github.com/labstack/echo/v4"

	"github.com/aether-games/echoes-engine/internal/workflow"
)

// ActionRequest is the body for POST /v1/actions.
type ActionRequest struct {
	Token   string `json:"token"`
	GroupID string `json:"group_id,omitempty"`
}

// PostAction handles POST /v1/actions: a button press.
func (h *Handler) PostAction(c echo.Context) error {
	playerID, name, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}
	var req ActionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Token == "" {
		return badRequest(c, "token is required")
	}
	if err := h.Guard.CheckRateLimit(playerID); err != nil {
		return writeError(c, err)
	}
	out, err := h.Game.HandleAction(c.Request().Context(), workflow.Inbound{
		GroupID:     req.GroupID,
		PlayerID:    playerID,
		DisplayName: name,
		Token:       req.Token,
	})
	return respond(c, out, err)
}

// ListTasks handles GET /v1/tasks.
func (h *Handler) ListTasks(c echo.Context) error {
	playerID, _, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.Game.ListTasks(c.Request().Context(), playerID)
	return respond(c, out, err)
}

// SubmitRequest is the body for POST /v1/tasks/submit.
type SubmitRequest struct {
	Code string `json:"code"`
}

// SubmitTask handles POST /v1/tasks/submit.
func (h *Handler) SubmitTask(c echo.Context) error {
	playerID, _, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Code == "" {
		return badRequest(c, "code is required")
	}
	out, err := h.Game.SubmitTask(c.Request().Context(), playerID, req.Code)
	return respond(c, out, err)
}

// AbandonTask handles POST /v1/tasks/abandon.
func (h *Handler) AbandonTask(c echo.Context) error {
	playerID, _, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.Game.AbandonTask(c.Request().Context(), playerID)
	return respond(c, out, err)
}
