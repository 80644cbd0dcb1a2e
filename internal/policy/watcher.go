package policy

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RuleSource holds the current rule set and hot-reloads it when the rule
// file changes on disk. Readers always see a complete, compiled rule set;
// a reload swaps the pointer atomically and a broken edit keeps the
// previous rules in place.
type RuleSource struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	current atomic.Pointer[Rules]
	stop    chan struct{}
}

// NewRuleSource loads the rule file at path. An empty path yields a
// static source serving DefaultRules.
func NewRuleSource(path string, logger *zap.Logger) (*RuleSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RuleSource{
		path:   path,
		logger: logger,
		stop:   make(chan struct{}),
	}

	if path == "" {
		s.current.Store(DefaultRules())
		return s, nil
	}

	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(rules)
	return s, nil
}

// Current returns the rule set readers should evaluate against.
func (s *RuleSource) Current() *Rules {
	return s.current.Load()
}

// Watch begins reloading the rule file on change. It returns immediately;
// reloading runs in a background goroutine until ctx is done or Close is
// called. Watching a static source is a no-op.
func (s *RuleSource) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("rule watcher: %w", err)
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watching rules file %s: %w", s.path, err)
	}
	s.watcher = watcher

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				s.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("rule watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (s *RuleSource) reload() {
	rules, err := LoadRules(s.path)
	if err != nil {
		// Keep serving the previous rules rather than dropping policy.
		s.logger.Error("rule reload failed, keeping previous rules",
			zap.String("path", s.path), zap.Error(err))
		return
	}
	s.current.Store(rules)
	s.logger.Info("policy rules reloaded", zap.String("path", s.path))
}

// Close stops the background reloader.
func (s *RuleSource) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}
