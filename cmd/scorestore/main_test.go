package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/boardgamescores/scorestore/bolt"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), bolt.DefaultFilename)
	t.Setenv("SCORESTORE_BOLT_PATH", path)
	t.Setenv("SCORESTORE_LOG_LEVEL", "error")

	run := func(args ...string) string {
		t.Helper()
		cmd, err := NewCommand(context.Background(), viper.New())
		require.NoError(t, err)

		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	assert.Equal(t, path+" is at schema version 6\n", run("migrate"))
	assert.Contains(t, run("inspect", "--format", "tree"), "schema version 6 of 6")
}
