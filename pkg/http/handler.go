package http

import "github.com/labstack/echo/v4"

// Handler registers its routes on the server's echo instance. NewServer calls
// it once, after the shared middleware chain is installed.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
