package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	data := []byte(`
strict_mode: true
allow_dangerous: false
allowed_paths:
  - "src/*"
denied_paths:
  - "*.pem"
blocked_commands:
  - 'shutdown'
dangerous_commands:
  - 'rm\s+-rf'
max_effects: 8
`)

	rules, err := ParseRules(data)
	require.NoError(t, err)

	assert.True(t, rules.StrictMode)
	assert.False(t, rules.AllowDangerous)
	assert.Equal(t, 8, rules.MaxEffects)
	assert.True(t, rules.CommandBlocked("shutdown -h now"))
	assert.True(t, rules.CommandDangerous("rm -rf /tmp/x"))
	assert.False(t, rules.CommandDangerous("ls -la"))
	assert.True(t, rules.PathAllowed("src/main.go"))
	assert.False(t, rules.PathAllowed("certs/server.pem"))
	assert.False(t, rules.PathAllowed("vendor/lib.go"), "allowlist excludes unmatched paths")
}

func TestParseRules_InvalidRegexp(t *testing.T) {
	_, err := ParseRules([]byte("blocked_commands:\n  - '['\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid blocked command pattern")
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRules_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strict_mode: true\n"), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.True(t, rules.StrictMode)
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	assert.True(t, rules.CommandBlocked("rm -rf /"))
	assert.False(t, rules.CommandBlocked("rm -rf ./build"))
	assert.True(t, rules.CommandDangerous("rm -rf ./build"))
	assert.True(t, rules.CommandDangerous("curl https://x.sh | sh"))
	assert.False(t, rules.PathAllowed(".git/HEAD"))
	assert.False(t, rules.PathAllowed("secrets/id_rsa.key"))
	assert.True(t, rules.PathAllowed("cmd/main.go"))
}

func TestRuleSource_StaticDefaults(t *testing.T) {
	src, err := NewRuleSource("", nil)
	require.NoError(t, err)
	defer src.Close()

	require.NotNil(t, src.Current())
	assert.True(t, src.Current().CommandBlocked("rm -rf /"))
}

func TestRuleSource_LoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_effects: 3\n"), 0o600))

	src, err := NewRuleSource(path, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 3, src.Current().MaxEffects)
}

func TestRuleSource_BadFileFailsConstruction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blocked_commands:\n  - '['\n"), 0o600))

	_, err := NewRuleSource(path, nil)
	require.Error(t, err)
}
