package policy

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/service/storage"
)

// Rule names reported on guardrail violations.
const (
	RuleMaxFiles  = "max_files"
	RuleForbidden = "forbidden"
	RulePath      = "path"
	RuleDuplicate = "duplicate"
)

// DefaultMaxFiles bounds the number of files a single transaction may touch.
const DefaultMaxFiles = 20

// DefaultForbidden lists files a patch may never touch: lock files,
// environment files, VCS internals and container definitions. Patterns
// without a slash match any path segment.
var DefaultForbidden = []string{
	".env*", "*.env",
	".git", ".hg", ".svn",
	"*.lock", "package-lock.json", "pnpm-lock.yaml", "go.sum",
	"Dockerfile", "Dockerfile.*", "*.dockerfile", ".dockerignore",
	"Containerfile*", "*.containerfile",
	"docker-compose*.yml", "docker-compose*.yaml", "compose*.yml", "compose*.yaml",
}

// Policy represents the guardrails for a transaction.
//
//   - MaxFiles limits batch size (<= 0 means DefaultMaxFiles).
//   - BlockList holds forbidden globs.
//   - AllowList exempts paths that would otherwise be blocked.
//
// A nil *Policy applies the defaults.
type Policy struct {
	MaxFiles  int
	AllowList []string
	BlockList []string
}

// ---------------------------------------------------------------------------
// Config <-> Policy converters
// ---------------------------------------------------------------------------

// Config represents the serialisable part of a Policy.
type Config struct {
	MaxFiles  int      `json:"maxFiles,omitempty" yaml:"maxFiles,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"forbidden,omitempty" yaml:"forbidden,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		MaxFiles:  p.MaxFiles,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		MaxFiles:  c.MaxFiles,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// Default returns a policy with DefaultMaxFiles and DefaultForbidden.
func Default() *Policy {
	return &Policy{MaxFiles: DefaultMaxFiles, BlockList: append([]string(nil), DefaultForbidden...)}
}

func (p *Policy) maxFiles() int {
	if p == nil || p.MaxFiles <= 0 {
		return DefaultMaxFiles
	}
	return p.MaxFiles
}

func (p *Policy) blockList() []string {
	if p == nil || p.BlockList == nil {
		return DefaultForbidden
	}
	return p.BlockList
}

// IsAllowed reports whether a root-relative path may be touched and, if not,
// the glob that forbids it. AllowList entries win over the block list.
func (p *Policy) IsAllowed(relative string) (bool, string) {
	if p != nil {
		for _, pattern := range p.AllowList {
			if Match(pattern, relative) {
				return true, ""
			}
		}
	}
	for _, pattern := range p.blockList() {
		if Match(pattern, relative) {
			return false, pattern
		}
	}
	return true, ""
}

// CheckPath validates a single path: containment first, then the block list.
func (p *Policy) CheckPath(relative string) *model.Error {
	cleaned, err := storage.Clean(relative)
	if err != nil {
		return model.NewGuardrailError(relative, RulePath, err.Error())
	}
	if ok, pattern := p.IsAllowed(cleaned); !ok {
		return model.NewGuardrailError(relative, RuleForbidden, fmt.Sprintf("path matches forbidden pattern %q", pattern))
	}
	return nil
}

// Check validates a whole batch of paths before anything is read. The first
// violation in batch order is returned; nil means the batch may proceed.
func (p *Policy) Check(paths []string) *model.Error {
	if limit := p.maxFiles(); len(paths) > limit {
		return model.NewGuardrailError("", RuleMaxFiles,
			fmt.Sprintf("batch touches %d files, limit is %d", len(paths), limit))
	}
	seen := make(map[string]bool, len(paths))
	for _, relative := range paths {
		if err := p.CheckPath(relative); err != nil {
			return err
		}
		cleaned, _ := storage.Clean(relative)
		if seen[cleaned] {
			return model.NewGuardrailError(relative, RuleDuplicate, "path appears more than once in the batch")
		}
		seen[cleaned] = true
	}
	return nil
}

// Match reports whether a root-relative path matches a glob. Patterns
// containing a slash match the whole path (a leading "**/" matches at any
// depth); other patterns match any single path segment.
func Match(pattern, relative string) bool {
	pattern = strings.TrimPrefix(pattern, "./")
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		segments := strings.Split(relative, "/")
		for i := range segments {
			if matched, _ := path.Match(rest, strings.Join(segments[i:], "/")); matched {
				return true
			}
		}
		return false
	}
	if strings.Contains(pattern, "/") {
		matched, _ := path.Match(pattern, relative)
		return matched
	}
	for _, segment := range strings.Split(relative, "/") {
		if matched, _ := path.Match(pattern, segment); matched {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy embedded in ctx, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
