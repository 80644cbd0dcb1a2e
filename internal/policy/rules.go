package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules is the YAML-loadable policy rule set consulted by the built-in
// validators.
type Rules struct {
	// StrictMode requires declared effects for every file/command action.
	StrictMode bool `yaml:"strict_mode"`

	// AllowDangerous downgrades dangerous-command failures to warnings.
	AllowDangerous bool `yaml:"allow_dangerous"`

	// AllowedPaths are glob patterns file actions must match. Empty
	// means any path is allowed unless denied.
	AllowedPaths []string `yaml:"allowed_paths"`

	// DeniedPaths are glob patterns file actions must not match.
	DeniedPaths []string `yaml:"denied_paths"`

	// BlockedCommands are regular expressions for commands that always
	// fail validation.
	BlockedCommands []string `yaml:"blocked_commands"`

	// DangerousCommands are regular expressions for commands that fail
	// unless AllowDangerous is set, in which case they warn.
	DangerousCommands []string `yaml:"dangerous_commands"`

	// MaxEffects bounds the number of declared effects per intent.
	// Zero disables the bound.
	MaxEffects int `yaml:"max_effects"`

	blocked   []*regexp.Regexp
	dangerous []*regexp.Regexp
}

// DefaultRules returns the rule set used when no rule file is configured.
func DefaultRules() *Rules {
	r := &Rules{
		DeniedPaths: []string{".git/*", "*.pem", "*.key"},
		BlockedCommands: []string{
			`rm\s+-rf\s+/\s*$`,
			`:\(\)\s*\{.*\};\s*:`,
			`mkfs`,
			`dd\s+if=.*of=/dev/`,
		},
		DangerousCommands: []string{
			`rm\s+-rf`,
			`git\s+push\s+.*--force`,
			`git\s+reset\s+--hard`,
			`curl\s+.*\|\s*(ba)?sh`,
		},
		MaxEffects: 32,
	}
	// Patterns above are literals; compilation cannot fail.
	if err := r.Compile(); err != nil {
		panic(err)
	}
	return r
}

// ParseRules unmarshals and compiles a YAML rule set.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := r.Compile(); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadRules reads and parses a rule file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

// Compile validates glob patterns and compiles command regexps. It must
// be called before the rule set is used; ParseRules and LoadRules call it.
func (r *Rules) Compile() error {
	for _, g := range append(append([]string{}, r.AllowedPaths...), r.DeniedPaths...) {
		if _, err := filepath.Match(g, "probe"); err != nil {
			return fmt.Errorf("invalid path pattern %q: %w", g, err)
		}
	}

	r.blocked = r.blocked[:0]
	for _, p := range r.BlockedCommands {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid blocked command pattern %q: %w", p, err)
		}
		r.blocked = append(r.blocked, re)
	}

	r.dangerous = r.dangerous[:0]
	for _, p := range r.DangerousCommands {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid dangerous command pattern %q: %w", p, err)
		}
		r.dangerous = append(r.dangerous, re)
	}
	return nil
}

// PathAllowed reports whether a file path passes the allow/deny globs.
// Deny wins over allow; matching is against the cleaned path and its
// base name so "*.pem" blocks nested keys too.
func (r *Rules) PathAllowed(path string) bool {
	clean := filepath.ToSlash(filepath.Clean(path))
	for _, g := range r.DeniedPaths {
		if matchGlob(g, clean) {
			return false
		}
	}
	if len(r.AllowedPaths) == 0 {
		return true
	}
	for _, g := range r.AllowedPaths {
		if matchGlob(g, clean) {
			return true
		}
	}
	return false
}

// CommandBlocked reports whether a command matches a blocked pattern.
func (r *Rules) CommandBlocked(command string) bool {
	for _, re := range r.blocked {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// CommandDangerous reports whether a command matches a dangerous pattern.
func (r *Rules) CommandDangerous(command string) bool {
	for _, re := range r.dangerous {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, path string) bool {
	if ok, _ := filepath.Match(pattern, path); ok {
		return true
	}
	if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
		return true
	}
	// "dir/*" should also cover deeper nesting.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
