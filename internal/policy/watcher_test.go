package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRuleSource_EmptyPathServesDefaults(t *testing.T) {
	source, err := NewRuleSource("", zap.NewNop())
	require.NoError(t, err)
	defer source.Close()

	rules := source.Current()
	require.NotNil(t, rules)
	assert.NotEmpty(t, rules.BlockedCommands, "defaults carry blocked command patterns")

	// Watching a static source is a no-op.
	assert.NoError(t, source.Watch(context.Background()))
}

func TestNewRuleSource_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blocked_commands:\n  - '['\n"), 0600))

	_, err := NewRuleSource(path, zap.NewNop())
	assert.Error(t, err)
}

func TestRuleSource_HotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_effects: 1\n"), 0600))

	source, err := NewRuleSource(path, zap.NewNop())
	require.NoError(t, err)
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, source.Watch(ctx))

	assert.Equal(t, 1, source.Current().MaxEffects)

	require.NoError(t, os.WriteFile(path, []byte("max_effects: 7\n"), 0600))

	require.Eventually(t, func() bool {
		return source.Current().MaxEffects == 7
	}, 2*time.Second, 10*time.Millisecond, "edit should be picked up")
}

func TestRuleSource_BrokenEditKeepsPreviousRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_effects: 3\n"), 0600))

	source, err := NewRuleSource(path, zap.NewNop())
	require.NoError(t, err)
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, source.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte(":::: not yaml ::::"), 0600))

	// The broken edit must never surface; give the watcher a moment.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 3, source.Current().MaxEffects)
}

func TestState_CurrentRules(t *testing.T) {
	static := &Rules{MaxEffects: 2}
	state := &State{Rules: static}
	assert.Same(t, static, state.CurrentRules())

	source, err := NewRuleSource("", zap.NewNop())
	require.NoError(t, err)
	defer source.Close()

	state.Source = source
	assert.Same(t, source.Current(), state.CurrentRules(), "attached source supersedes the static field")
}
