package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/config"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/rpc"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"ui"},
		{"list", "pulls"},
		{"host", "run"},
		{"host", "stdio"},
		{"host", "install"},
		{"host", "remove"},
		{"credentials", "set"},
		{"credentials", "show"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.NotEqual(t, rootCmd, cmd, path)
	}
}

func TestListArgs(t *testing.T) {
	assert.NoError(t, listCommand.Args(listCommand, []string{"pulls"}))
	assert.NoError(t, listCommand.Args(listCommand, []string{"issues"}))
	assert.Error(t, listCommand.Args(listCommand, []string{"commits"}))
	assert.Error(t, listCommand.Args(listCommand, nil))
	assert.Error(t, listCommand.Args(listCommand, []string{"pulls", "issues"}))
}

func TestNewClient(t *testing.T) {
	cfg, err := config.Load("socket_path: /tmp/test.sock\nsettings_path: " + t.TempDir() + "/settings.yml\n")
	require.NoError(t, err)

	local = false
	assert.IsType(t, &rpc.SocketClient{}, newClient(cfg, quietLogger{}))

	local = true
	defer func() { local = false }()
	assert.IsType(t, &rpc.LocalClient{}, newClient(cfg, quietLogger{}))
}
