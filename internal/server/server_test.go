package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/helpflowai/helpflow/internal/handlers"
)

func TestNewServerSkipsNilRegistrars(t *testing.T) {
	t.Parallel()

	srv := NewServer("", handlers.NewPingHandler(nil), nil)
	assert.Equal(t, ":8080", srv.addr)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServerInstallsValidator(t *testing.T) {
	t.Parallel()

	srv := NewServer(":9090")
	assert.Equal(t, ":9090", srv.addr)
	assert.NotNil(t, srv.echo.Validator)

	type payload struct {
		Name string `validate:"required"`
	}
	assert.Error(t, srv.echo.Validator.Validate(&payload{}))
	assert.NoError(t, srv.echo.Validator.Validate(&payload{Name: "x"}))
}

var _ Registrar = (*handlers.WebhookHandler)(nil)

func TestRegistrarInterface(t *testing.T) {
	t.Parallel()

	e := echo.New()
	handlers.NewPingHandler(nil).Register(e)
	routes := e.Routes()
	assert.NotEmpty(t, routes)
}
