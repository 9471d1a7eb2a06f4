package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkfoss/nwrfc"
)

const sample = `library: /opt/nwrfcsdk/lib/libsapnwrfc.so
destinations:
  dev:
    ashost: 10.0.0.1
    sysnr: "00"
    client: "001"
    user: DEVELOPER
    passwd: secret
  qas:
    mshost: msg.example.com
    group: PUBLIC
    client: "100"
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "nwrfc.yaml", sample)

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	require.Equal(t, path, cfg.Path())
	require.Equal(t, "/opt/nwrfcsdk/lib/libsapnwrfc.so", cfg.Library())
	require.Equal(t, []string{"dev", "qas"}, cfg.Destinations())

	p, err := cfg.Destination("DEV")
	require.NoError(t, err)
	require.Equal(t, nwrfc.Params{
		"ashost": "10.0.0.1",
		"sysnr":  "00",
		"client": "001",
		"user":   "DEVELOPER",
		"passwd": "secret",
	}, p)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "nwrfc.yaml", sample)
	t.Setenv("NWRFC_DEV_PASSWD", "from-env")
	t.Setenv("NWRFC_DEV_LANG", "DE")
	t.Setenv("NWRFC_LIB", "/tmp/libsapnwrfc.so")

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	require.Equal(t, "/tmp/libsapnwrfc.so", cfg.Library())

	p, err := cfg.Destination("dev")
	require.NoError(t, err)
	require.Equal(t, "from-env", p["passwd"])
	require.Equal(t, "DE", p["lang"])
	require.Equal(t, "DEVELOPER", p["user"])
}

func TestEnvironmentOnlyDestination(t *testing.T) {
	t.Setenv("NWRFC_PRD_ASHOST", "prd.example.com")
	t.Setenv("NWRFC_PRD_CLIENT", "300")

	cfg, err := Load(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	require.Empty(t, cfg.Path())
	require.Empty(t, cfg.Destinations())

	p, err := cfg.Destination("prd")
	require.NoError(t, err)
	require.Equal(t, nwrfc.Params{"ashost": "prd.example.com", "client": "300"}, p)
}

func TestUnknownDestination(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "nwrfc.yaml", sample)
	cfg, err := Load(Options{File: path})
	require.NoError(t, err)

	_, err = cfg.Destination("nope")
	require.ErrorIs(t, err, ErrUnknownDestination)
}

func TestSearchDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "nwrfc.toml", "[destinations.sim]\nashost = \"sim\"\nclient = \"001\"\n")

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "nwrfc.toml"), cfg.Path())

	p, err := cfg.Destination("sim")
	require.NoError(t, err)
	require.Equal(t, "sim", p["ashost"])
}

func TestMissingFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "absent.yaml")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMalformedFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "nwrfc.yaml", "destinations: [unclosed\n")
	_, err := Load(Options{File: path})
	require.Error(t, err)
}

func TestDirDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err := Dir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/xdg", AppName), dir)
}
