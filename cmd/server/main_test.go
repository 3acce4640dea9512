package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Brownie44l1/pulmoscan-api/internal/config"
)

func bridgeConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	weights := filepath.Join(dir, "best.pt")
	require.NoError(t, os.WriteFile(weights, []byte("weights"), 0o644))
	script := filepath.Join(dir, "bridge.sh")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
read -r weights
echo '{"names": {"0": "Lung_Opacity", "1": "Normal", "2": "Viral Pneumonia"}}'
while read -r line; do
echo '{"class_id": 1, "confidence": 0.9}'
done
`), 0o755))

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Model.Backend = config.BackendUltralytics
	cfg.Model.Path = weights
	cfg.Model.BridgeCommand = script
	cfg.Upload.TempDir = filepath.Join(dir, "uploads")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServeFailsWhenPortTaken(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := bridgeConfig(t)
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port

	err = serve(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestServeFailsWhenModelMissing(t *testing.T) {
	cfg := bridgeConfig(t)
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.pt")

	err := serve(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "failed to load model")
}
