package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewServer creates the echo server with the command routes and, when ws is
// set, the WebSocket endpoint at /v1/ws.
func NewServer(h *Handler, ws http.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)
	if ws != nil {
		e.GET("/v1/ws", echo.WrapHandler(ws))
	}
	return e
}
