package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/folio-checkout/pkg/health"
)

func TestServe_GracefulShutdown(t *testing.T) {
	probes := health.New(nil)
	probes.SetReady(true)

	srv := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, zaptest.NewLogger(t), srv, probes, GracefulConfig{
			ReadinessDelay:  10 * time.Millisecond,
			ShutdownTimeout: time.Second,
		})
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.False(t, probes.IsReady())
}

func TestServe_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	srv := &http.Server{
		Addr:              l.Addr().String(),
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	err = serve(context.Background(), zaptest.NewLogger(t), srv, health.New(nil), GracefulConfig{
		ReadinessDelay:  time.Hour,
		ShutdownTimeout: time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
