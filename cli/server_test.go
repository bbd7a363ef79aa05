package cli_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/tenderd/tenderd/cli"
	"github.com/tenderd/tenderd/testutil"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServer(t *testing.T) {
	t.Parallel()

	redis := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(testutil.Context(t, testutil.WaitLong))
	defer cancel()

	var root cli.RootCmd
	inv := root.Command().Invoke(
		"server",
		"--http-address", "127.0.0.1:0",
		"--session-store", "redis",
		"--redis-url", "redis://"+redis.Addr(),
		"--log-human", "/dev/stderr",
	)
	stdout := &syncBuffer{}
	inv.Stdout = stdout
	inv.Stderr = io.Discard

	errC := make(chan error, 1)
	go func() {
		errC <- inv.WithContext(ctx).Run()
	}()

	const prefix = "Started HTTP listener at "
	var url string
	require.Eventually(t, func() bool {
		for _, line := range strings.Split(stdout.String(), "\n") {
			if strings.HasPrefix(line, prefix) {
				url = strings.TrimPrefix(line, prefix)
				return true
			}
		}
		return false
	}, testutil.WaitShort, testutil.IntervalFast)

	for path, code := range map[string]int{
		"/healthz":              http.StatusOK,
		"/api/v1/organizations": http.StatusUnauthorized,
		"/api/v1/nope":          http.StatusNotFound,
	} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+path, nil)
		require.NoError(t, err)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = res.Body.Close()
		require.Equal(t, code, res.StatusCode, path)
	}

	cancel()
	require.NoError(t, <-errC)
	require.Contains(t, stdout.String(), "Shutting down")
}

func TestServerOptions(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		args []string
		err  string
	}{
		{"RedisWithoutURL", []string{"--session-store", "redis"}, "--redis-url"},
		{"UnknownSessionStore", []string{"--session-store", "memcached"}, "memcached"},
		{"NoLoggers", []string{"--log-human", ""}, "no loggers"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := testutil.Context(t, testutil.WaitShort)

			var root cli.RootCmd
			inv := root.Command().Invoke(append([]string{"server", "--http-address", "127.0.0.1:0"}, tc.args...)...)
			inv.Stdout = io.Discard
			inv.Stderr = io.Discard
			err := inv.WithContext(ctx).Run()
			require.ErrorContains(t, err, tc.err)
		})
	}
}
