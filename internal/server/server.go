package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/helpflowai/helpflow/internal/handlers"
)

// Registrar is anything that mounts routes on the echo instance.
type Registrar interface {
	Register(e *echo.Echo)
}

type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer assembles the HTTP surface. Nil registrars are skipped so
// partial deployments (for example a worker-only process without the
// admin API) stay possible.
func NewServer(addr string, registrars ...Registrar) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	for _, r := range registrars {
		if r != nil {
			r.Register(e)
		}
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
