package server

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"BrentCast/internal/service/ratelimit"
	"BrentCast/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testConfig(port int) *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = port
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestAppServesAndStops(t *testing.T) {
	cfg := testConfig(freePort(t))
	stop := make(chan struct{})
	app := New(cfg, nil, prometheus.NewRegistry(), pingHandler{}, nil, nil, ratelimit.New(10, 10, time.Minute), nil)
	app.stop = stop

	done := make(chan error, 1)
	go func() { done <- app.Run() }()

	url := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Get(url + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	close(stop)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestAppReportsListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(ln.Addr().(*net.TCPAddr).Port)
	app := New(cfg, nil, prometheus.NewRegistry(), pingHandler{}, nil, nil, nil, nil)
	app.stop = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- app.Run() }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen failure was not reported")
	}
}
