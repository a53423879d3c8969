package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleToml = `
bind = "0.0.0.0"

[mqtt]
broker_addr = "localhost"
port = 1883

[[cameras]]
name = "front-door"
username = "admin"
password = "hunter2"
uid = "95270000ABCDEF01"
discovery = "map"
stream = "Sub"
enabled = true

[cameras.pause]
on_motion = true
timeout = "30s"

[[cameras]]
name = "driveway"
address = "192.168.1.50:9000"
discovery = "local"
enabled = true
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "neolink.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeTemp(t, sampleToml))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Bind)
	require.Len(t, cfg.Cameras, 2)
	require.Equal(t, "95270000ABCDEF01", cfg.Cameras[0].UID)
	require.True(t, cfg.Cameras[0].Pause.OnMotion)
	require.Equal(t, "30s", cfg.Cameras[0].Pause.Timeout.String())
}

func TestValidateRejectsMissingName(t *testing.T) {
	_, err := Load(writeTemp(t, `[[cameras]]
uid = "x"
`))
	require.ErrorContains(t, err, "missing name")
}

func TestValidateRejectsBothUIDAndAddress(t *testing.T) {
	_, err := Load(writeTemp(t, `[[cameras]]
name = "a"
uid = "x"
address = "1.2.3.4:9000"
`))
	require.ErrorContains(t, err, "exactly one of uid/address")
}

func TestValidateRejectsNeitherUIDNorAddress(t *testing.T) {
	_, err := Load(writeTemp(t, `[[cameras]]
name = "a"
`))
	require.ErrorContains(t, err, "exactly one of uid/address")
}

func TestValidateRejectsDuplicateName(t *testing.T) {
	_, err := Load(writeTemp(t, `[[cameras]]
name = "a"
uid = "x"
[[cameras]]
name = "a"
uid = "y"
`))
	require.ErrorContains(t, err, "duplicate camera name")
}

func TestValidateRejectsUnknownDiscoveryStrategy(t *testing.T) {
	_, err := Load(writeTemp(t, `[[cameras]]
name = "a"
uid = "x"
discovery = "bluetooth"
`))
	require.ErrorContains(t, err, "unknown discovery strategy")
}

func TestToCameraConfig(t *testing.T) {
	cfg, err := Load(writeTemp(t, sampleToml))
	require.NoError(t, err)
	cc := ToCameraConfig(cfg.Cameras[0])
	require.Equal(t, "front-door", cc.Name)
	require.Equal(t, "95270000ABCDEF01", cc.UID)
	require.True(t, cc.Enabled)
}
