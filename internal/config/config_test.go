package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
listen: ":9090"
log:
  level: debug
workdir: /var/lib/workbench
request_timeout: 10s
retries: 2
monitor:
  check_interval: 5s
  max_duration: 30m
  stuck_threshold: 300s
  active_stuck_threshold: 120s
  max_consecutive_stuck: 3
  memory_pressure_limit: 0.9
servers:
  - name: old
    role: source
    host: old.pds.example
    handle: alice.old.pds.example
    access_token: $WORKBENCH_TEST_TOKEN
  - role: destination
    scheme: http
    host: localhost
    port: 2583
`

func writeConfig(t *testing.T, body string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/workbench.yaml", []byte(body), 0o644))
	return fs
}

func TestParse_Defaults(t *testing.T) {
	c, err := Parse(afero.NewMemMapFs(), nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Listen)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "workbench-data/history.json", c.HistoryFile)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Equal(t, uint64(3), c.Retries)
	assert.Equal(t, time.Hour, c.Monitor.MaxDuration)
	assert.Empty(t, c.Servers)
}

func TestParse_ConfigFile(t *testing.T) {
	t.Setenv("WORKBENCH_TEST_TOKEN", "s3cret")
	fs := writeConfig(t, sampleConfig)

	c, err := Parse(fs, []string{"--config", "/etc/workbench.yaml"})
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.Listen)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "/var/lib/workbench", c.WorkDir)
	assert.Equal(t, "/var/lib/workbench/history.json", c.HistoryFile)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, uint64(2), c.Retries)
	assert.Equal(t, 5*time.Second, c.Monitor.CheckInterval)
	assert.Equal(t, 30*time.Minute, c.Monitor.MaxDuration)
	assert.Equal(t, 3, c.Monitor.MaxConsecutiveStuck)

	require.Len(t, c.Servers, 2)
	assert.Equal(t, "s3cret", c.Servers[0].AccessToken)
	assert.Equal(t, "https", c.Servers[0].Scheme)
	assert.Equal(t, 443, c.Servers[0].Port)
	assert.Equal(t, "localhost", c.Servers[1].Name)
	assert.Equal(t, 2583, c.Servers[1].Port)
}

func TestParse_FlagsOverrideFile(t *testing.T) {
	fs := writeConfig(t, sampleConfig)

	c, err := Parse(fs, []string{"-c", "/etc/workbench.yaml", "--listen", ":7000", "--max-duration", "2h", "--retries", "0"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", c.Listen)
	assert.Equal(t, 2*time.Hour, c.Monitor.MaxDuration)
	assert.Equal(t, uint64(0), c.Retries)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		args []string
	}{
		{"missing file", "", []string{"--config", "/nope.yaml"}},
		{"bad yaml", "listen: [", []string{"--config", "/etc/workbench.yaml"}},
		{"bad level", "log:\n  level: loud\n", []string{"--config", "/etc/workbench.yaml"}},
		{"server without host", "servers:\n  - name: x\n", []string{"--config", "/etc/workbench.yaml"}},
		{"bad role", "servers:\n  - host: a\n    role: both\n", []string{"--config", "/etc/workbench.yaml"}},
		{"unknown flag", "", []string{"--frobnicate"}},
		{"too many retries", "", []string{"--retries", "50"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(writeConfig(t, tc.body), tc.args)
			assert.Error(t, err)
		})
	}
}
