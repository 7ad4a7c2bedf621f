package metrics_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/static-dev/contentful/internal/metrics"
	"github.com/stretchr/testify/require"
)

func TestListenAndServe(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		addr    string
		wantErr bool
	}{
		"Any free port": {addr: "127.0.0.1:0"},

		"Error on bad address": {addr: "127.0.0.1:-1", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := metrics.New(metrics.Config{Addr: tc.addr, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}, newRegistry(t))
			require.Empty(t, server.Addr(), "Addr should be empty before ListenAndServe")

			errCh := listenAndServeAsync(t, server)
			defer server.Close()

			select {
			case err := <-errCh:
				require.True(t, tc.wantErr, "ListenAndServe returned unexpectedly: %v", err)
				require.Error(t, err, "ListenAndServe should fail")
				require.Empty(t, server.Addr(), "Addr should be empty if ListenAndServe fails")
				return
			case <-server.WaitReady():
				require.False(t, tc.wantErr, "ListenAndServe should have failed")
			case <-time.After(5 * time.Second):
				require.Fail(t, "Server did not get ready")
			}

			require.NotEmpty(t, server.Addr(), "Addr should be set after ListenAndServe")
			body := get(t, server)
			require.Contains(t, body, "contentful_test_total 1", "Metrics endpoint should expose the registry")
		})
	}
}

func TestServe(t *testing.T) {
	t.Parallel()

	server := metrics.New(metrics.Config{Addr: "127.0.0.1:0"}, newRegistry(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ctx) }()

	select {
	case <-server.WaitReady():
	case err := <-errCh:
		require.Failf(t, "Serve returned unexpectedly", "Got possible error: %v", err)
	case <-time.After(5 * time.Second):
		require.Fail(t, "Server did not get ready")
	}
	_ = get(t, server)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err, "Serve should return no error on shutdown")
	case <-time.After(10 * time.Second):
		require.Fail(t, "Serve did not return after cancellation")
	}

	_, err := http.Get("http://" + server.Addr() + "/metrics")
	require.Error(t, err, "Server should no longer answer after shutdown")
}

func TestClose(t *testing.T) {
	t.Parallel()

	server := metrics.New(metrics.Config{Addr: "127.0.0.1:0"}, newRegistry(t))
	errCh := listenAndServeAsync(t, server)
	<-server.WaitReady()

	require.NoError(t, server.Close(), "Close should succeed")

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, http.ErrServerClosed, "ListenAndServe should return ErrServerClosed after close")
	case <-time.After(5 * time.Second):
		require.Fail(t, "ListenAndServe did not return after close")
	}
}

func newRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "contentful_test_total", Help: "Test counter."})
	reg.MustRegister(c)
	c.Inc()
	return reg
}

func listenAndServeAsync(t *testing.T, server *metrics.Server) chan error {
	t.Helper()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		errCh <- server.ListenAndServe()
	}()
	return errCh
}

func get(t *testing.T, server *metrics.Server) string {
	t.Helper()

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err, "Request to the metrics endpoint should succeed")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "Metrics endpoint should return 200 OK")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "Response body should be readable")
	return string(body)
}
