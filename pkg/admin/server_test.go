package admin_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/admin"
)

func TestServer(t *testing.T) {
	t.Parallel()

	t.Run("serves until the context is done", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		srv := admin.NewServer(admin.Config{ShutdownTimeout: 100 * time.Millisecond})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, ln, admin.NewRouter(admin.Deps{})) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			require.Fail(t, "serve did not return")
		}
		require.NoError(t, srv.Shutdown(context.Background()))
	})

	t.Run("listen failure", func(t *testing.T) {
		t.Parallel()

		err := admin.NewServer(admin.Config{Addr: ":invalid"}).Run(context.Background(), nil)
		assert.ErrorIs(t, err, admin.ErrStart)
	})

	t.Run("shutdown before run is a no-op", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, admin.NewServer(admin.Config{}).Shutdown(context.Background()))
	})
}
