package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"analyze", "serve", "analytics"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "compliance-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, name := range []string{"registry", "epc", "format", "search", "risk", "status", "top", "csv", "xlsx", "geojson", "map-mode", "json"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), "analyze should have --%s flag", name)
	}
	assert.Equal(t, "ALL", analyzeCmd.Flags().Lookup("risk").DefValue)
	assert.Equal(t, "buildings", analyzeCmd.Flags().Lookup("map-mode").DefValue)
}

func TestAnalyticsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range analyticsCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"predict", "classify", "anomaly", "epc", "efficiency", "solar", "benchmark"} {
		assert.True(t, names[name], "analytics should have subcommand %q", name)
	}
}
