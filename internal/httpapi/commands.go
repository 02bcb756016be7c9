package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/grant"
	"github.com/aether-games/echoes-engine/internal/guard"
)

// authorized runs fn when the caller may issue cmd in the path's group.
func (h *Handler) authorized(c echo.Context, cmd guard.Command, fn func(groupID, playerID string) error) error {
	playerID, _, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}
	groupID := c.Param("group_id")
	if err := h.Guard.Authorize(c.Request().Context(), cmd, playerID, groupID); err != nil {
		return writeError(c, err)
	}
	return fn(groupID, playerID)
}

// GetGame handles GET /v1/groups/:group_id/game.
func (h *Handler) GetGame(c echo.Context) error {
	view, err := h.Game.Describe(c.Param("group_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// StartGame handles POST /v1/groups/:group_id/game.
func (h *Handler) StartGame(c echo.Context) error {
	return h.authorized(c, guard.CmdStartGame, func(groupID, _ string) error {
		out, err := h.Game.StartLobby(c.Request().Context(), groupID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, OutcomeResponse{Text: out.Text})
	})
}

// CancelGame handles DELETE /v1/groups/:group_id/game.
func (h *Handler) CancelGame(c echo.Context) error {
	return h.authorized(c, guard.CmdCancel, func(groupID, _ string) error {
		out, err := h.Game.Cancel(c.Request().Context(), groupID)
		return respond(c, out, err)
	})
}

// ExtendGame handles POST /v1/groups/:group_id/game/extend.
func (h *Handler) ExtendGame(c echo.Context) error {
	return h.authorized(c, guard.CmdExtend, func(groupID, _ string) error {
		out, err := h.Game.ExtendLobby(c.Request().Context(), groupID)
		return respond(c, out, err)
	})
}

// ForceStart handles POST /v1/groups/:group_id/game/forcestart.
func (h *Handler) ForceStart(c echo.Context) error {
	return h.authorized(c, guard.CmdForceStart, func(groupID, _ string) error {
		out, err := h.Game.ForceBegin(c.Request().Context(), groupID)
		return respond(c, out, err)
	})
}

// AdvanceGame handles POST /v1/groups/:group_id/game/advance.
func (h *Handler) AdvanceGame(c echo.Context) error {
	return h.authorized(c, guard.CmdAdvance, func(groupID, _ string) error {
		out, err := h.Game.Advance(c.Request().Context(), groupID)
		return respond(c, out, err)
	})
}

// JoinGame handles POST /v1/groups/:group_id/game/join. On success the
// response carries a grant for the WebSocket gateway.
func (h *Handler) JoinGame(c echo.Context) error {
	playerID, name, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}
	groupID := c.Param("group_id")
	out, err := h.Game.Join(c.Request().Context(), groupID, playerID, name)
	if err != nil {
		return writeError(c, err)
	}
	token, err := h.Grants.Issue(grant.KindPlayer, playerID, name, groupID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OutcomeResponse{Text: out.Text, Grant: token})
}

// FleeGame handles POST /v1/groups/:group_id/game/flee.
func (h *Handler) FleeGame(c echo.Context) error {
	playerID, _, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.Game.Flee(c.Request().Context(), c.Param("group_id"), playerID)
	if err == nil {
		h.Guard.Forget(playerID)
	}
	return respond(c, out, err)
}

// GroupGrant handles POST /v1/groups/:group_id/grant. The grant lets a
// group surface subscribe to the shared announcements.
func (h *Handler) GroupGrant(c echo.Context) error {
	return h.authorized(c, guard.CmdObserve, func(groupID, _ string) error {
		token, err := h.Grants.Issue(grant.KindGroup, groupID, "", groupID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, OutcomeResponse{Grant: token})
	})
}

// MessageRequest is the body for POST /v1/groups/:group_id/messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// PostMessage handles POST /v1/groups/:group_id/messages. Group chat feeds
// the phrase tasks.
func (h *Handler) PostMessage(c echo.Context) error {
	playerID, _, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Text == "" {
		return badRequest(c, "text is required")
	}
	h.Game.ObserveMessage(c.Request().Context(), c.Param("group_id"), playerID, req.Text)
	return c.NoContent(http.StatusAccepted)
}

// AuthorizeGroup handles PUT /v1/groups/:group_id/authorization.
func (h *Handler) AuthorizeGroup(c echo.Context) error {
	return h.authorized(c, guard.CmdAuthorize, func(groupID, playerID string) error {
		added, err := h.Groups.AuthorizeGroup(c.Request().Context(), groupID, playerID)
		if err != nil {
			return writeError(c, err)
		}
		if !added {
			return c.JSON(http.StatusOK, OutcomeResponse{Text: "ℹ️ This group is already authorized."})
		}
		return c.JSON(http.StatusOK, OutcomeResponse{Text: "✅ Group authorized."})
	})
}

// DeauthorizeGroup handles DELETE /v1/groups/:group_id/authorization.
func (h *Handler) DeauthorizeGroup(c echo.Context) error {
	return h.authorized(c, guard.CmdDeauthorize, func(groupID, _ string) error {
		removed, err := h.Groups.DeauthorizeGroup(c.Request().Context(), groupID)
		if err != nil {
			return writeError(c, err)
		}
		if !removed {
			return writeError(c, domain.ErrGroupUnauthorized)
		}
		return c.JSON(http.StatusOK, OutcomeResponse{Text: "🚫 Group deauthorized."})
	})
}
