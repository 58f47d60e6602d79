package transaction

import (
	"context"

	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/policy"
	"github.com/viant/patchtx/service/parser"
	"github.com/viant/patchtx/service/storage"
)

// plan is one batch entry resolved to the paths it reads and writes and,
// once validated, the exact bytes it will write.
type plan struct {
	index     int
	change    *model.Change
	diff      *model.ParsedDiff
	source    string // path as it exists before the transaction
	target    string // path holding the result
	operation model.Operation
	content   []byte
	match     *model.MatchResult
	stat      *model.FileStat
}

func newPlan(index int, change *model.Change) *plan {
	path, err := storage.Clean(change.Path)
	if err != nil {
		path = change.Path
	}
	ret := &plan{index: index, change: change, source: path, target: path, operation: model.OperationUpdate}
	if change.Delete {
		ret.operation = model.OperationDelete
	}
	return ret
}

// parse runs the diff parser; it never touches storage.
func (p *plan) parse() *model.Error {
	if p.change.Patch == "" {
		return nil
	}
	p.diff = parser.Parse(p.change.Patch)
	if !p.diff.Valid {
		return parser.Failure(p.change.Path, p.diff)
	}
	switch {
	case p.diff.IsCreate():
		p.operation = model.OperationCreate
	case p.diff.IsDelete():
		p.operation = model.OperationDelete
	case p.diff.IsRename():
		p.operation = model.OperationRename
		if cleaned, err := storage.Clean(p.diff.NewPath); err == nil && cleaned == p.source {
			p.source = p.diff.OldPath
		} else {
			p.target = p.diff.NewPath
		}
	}
	return nil
}

// resolveRename applies guardrails to the header path of a rename.
func (p *plan) resolveRename(pol *policy.Policy) *model.Error {
	if p.operation != model.OperationRename {
		return nil
	}
	for _, candidate := range []string{p.source, p.target} {
		if failure := pol.CheckPath(candidate); failure != nil {
			return failure
		}
	}
	p.source, _ = storage.Clean(p.source)
	p.target, _ = storage.Clean(p.target)
	if p.source == p.target {
		p.operation = model.OperationUpdate
	}
	return nil
}

// paths returns the paths the plan writes or removes.
func (p *plan) paths() []string {
	if p.source == p.target {
		return []string{p.target}
	}
	return []string{p.target, p.source}
}

// load reads the current content and computes the bytes to write.
func (p *plan) load(ctx context.Context, store *storage.Service, apply func(original string, diff *model.ParsedDiff) *model.MatchResult) *model.Error {
	original, existed, err := store.Read(ctx, p.source)
	if err != nil {
		return readError(p.source, err)
	}
	switch {
	case p.change.Delete:
		if !existed {
			return model.NewError(model.KindContextMismatch, p.source, "file to delete does not exist")
		}
		p.match = replacement(original, nil, p.source)
	case p.change.IsReplacement():
		p.content = []byte(*p.change.Content)
		if !existed {
			p.operation = model.OperationCreate
		}
		p.match = replacement(original, p.content, p.target)
	default:
		if failure := p.checkExistence(ctx, store, existed); failure != nil {
			return failure
		}
		p.match = apply(string(original), p.diff)
		if !p.match.Success {
			if p.match.Failure == nil {
				return model.NewError(model.KindContextMismatch, p.change.Path, p.match.Error)
			}
			failure := *p.match.Failure
			failure.Path = p.change.Path
			return &failure
		}
		p.content = []byte(p.match.NewContent)
	}
	p.stat = &model.FileStat{
		Path:         p.target,
		Operation:    p.operation,
		LinesAdded:   p.match.LinesAdded,
		LinesDeleted: p.match.LinesDeleted,
	}
	if p.operation == model.OperationRename {
		p.stat.RenamedFrom = p.source
	}
	return nil
}

func (p *plan) checkExistence(ctx context.Context, store *storage.Service, existed bool) *model.Error {
	switch {
	case p.diff.IsCreate() && existed:
		return model.NewError(model.KindContextMismatch, p.source, "file to be created already exists")
	case !p.diff.IsCreate() && !existed:
		return model.NewError(model.KindContextMismatch, p.source, "file does not exist")
	case p.operation == model.OperationRename:
		exists, err := store.Exists(ctx, p.target)
		if err != nil {
			return readError(p.target, err)
		}
		if exists {
			return model.NewError(model.KindContextMismatch, p.target, "rename destination already exists")
		}
	}
	return nil
}

// replacement describes a full-content change as a match result. Line
// statistics are best effort and stay zero when no diff can be produced.
func replacement(original, content []byte, path string) *model.MatchResult {
	result := &model.MatchResult{Success: true, NewContent: string(content)}
	if _, stats, err := parser.GenerateDiff(original, content, path, 0); err == nil {
		result.LinesAdded = stats.Added
		result.LinesDeleted = stats.Removed
	}
	return result
}

func readError(path string, err error) *model.Error {
	return &model.Error{Kind: model.KindApply, Path: path, HunkIndex: -1, Message: "read failed", Err: err}
}
