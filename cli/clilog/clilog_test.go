package clilog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tenderd/tenderd/cli/clilog"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("NoSinks", func(t *testing.T) {
		t.Parallel()
		_, _, err := clilog.New().Build(nil, nil)
		require.Error(t, err)
	})

	t.Run("Human", func(t *testing.T) {
		t.Parallel()
		var stderr bytes.Buffer
		logger, closeLog, err := clilog.New(clilog.WithHuman("/dev/stderr")).Build(nil, &stderr)
		require.NoError(t, err)
		defer closeLog()

		logger.Info(context.Background(), "hello")
		logger.Debug(context.Background(), "hidden")
		require.Contains(t, stderr.String(), "hello")
		require.NotContains(t, stderr.String(), "hidden")
	})

	t.Run("JSONFile", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tenderd.json")
		logger, closeLog, err := clilog.New(clilog.WithJSON(path), clilog.WithVerbose()).Build(nil, nil)
		require.NoError(t, err)

		logger.Debug(context.Background(), "verbose entry")
		closeLog()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		require.Equal(t, "verbose entry", entry["msg"])
	})

	t.Run("Filter", func(t *testing.T) {
		t.Parallel()
		var stdout bytes.Buffer
		logger, closeLog, err := clilog.New(
			clilog.WithHuman("/dev/stdout"),
			clilog.WithFilter("authz"),
		).Build(&stdout, nil)
		require.NoError(t, err)
		defer closeLog()

		logger.Named("authz").Debug(context.Background(), "kept")
		logger.Named("http").Debug(context.Background(), "dropped")
		logger.Named("http").Info(context.Background(), "info always")
		require.Contains(t, stdout.String(), "kept")
		require.NotContains(t, stdout.String(), "dropped")
		require.Contains(t, stdout.String(), "info always")
	})

	t.Run("BadFilter", func(t *testing.T) {
		t.Parallel()
		_, _, err := clilog.New(clilog.WithHuman("/dev/stdout"), clilog.WithFilter("(")).Build(nil, nil)
		require.Error(t, err)
	})
}
