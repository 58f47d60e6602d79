package patch

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/model/types"
	"github.com/viant/patchtx/service/parser"
	"github.com/viant/patchtx/service/transaction"
)

// Name of the system/patch action service.
const Name = "system/patch"

// Service exposes transactional patching as an action service. Every apply
// call is its own transaction; nothing is kept between calls.
type Service struct {
	applier *transaction.Applier
}

// New creates the patch service over applier.
func New(applier *transaction.Applier) *Service { return &Service{applier: applier} }

// Name returns service identifier.
func (s *Service) Name() string { return Name }

// Methods returns service method catalogue.
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "apply",
			Description: "Applies a batch of unified-diff patches and full-file replacements atomically, optionally verified by a command; any failure leaves the tree as it was.",
			Input:       reflect.TypeOf(&ApplyInput{}),
			Output:      reflect.TypeOf(&ApplyOutput{}),
		},
		{
			Name:        "check",
			Description: "Validates a batch against the current files without writing anything and reports per-file match results.",
			Input:       reflect.TypeOf(&ApplyInput{}),
			Output:      reflect.TypeOf(&CheckOutput{}),
		},
		{
			Name:        "diff",
			Description: "Generates a unified-diff (and statistics) from two text blobs.",
			Input:       reflect.TypeOf(&DiffInput{}),
			Output:      reflect.TypeOf(&DiffOutput{}),
		},
	}
}

// Method maps method names to executable handlers.
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "apply":
		return s.apply, nil
	case "check":
		return s.check, nil
	case "diff":
		return s.diff, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

// -------------------------------------------------------------------------
// I/O contracts
// -------------------------------------------------------------------------

// ApplyInput is the payload for Service.apply and Service.check
type ApplyInput struct {
	// Patch may hold a multi-file unified diff; every file becomes one change
	// appended after Changes.
	Patch   string              `json:"patch,omitempty" description:"Unified-diff text (---/+++ file headers with @@ hunk markers), one or more files"`
	Changes []*model.Change     `json:"changes,omitempty" description:"Per-file changes: patch, full content or delete"`
	Verify  *model.Verification `json:"verify,omitempty" description:"Optional verification command; non-zero exit rolls back"`
}

// Request builds the transaction request.
func (i *ApplyInput) Request() *model.Request {
	request := &model.Request{Verify: i.Verify}
	request.Changes = append(request.Changes, i.Changes...)
	if strings.TrimSpace(i.Patch) != "" {
		request.Changes = append(request.Changes, parser.Changes(i.Patch)...)
	}
	return request
}

// ApplyOutput reports the transaction outcome.
type ApplyOutput struct {
	Result *model.TransactionResult `json:"result"`
	Stats  model.DiffStats          `json:"stats,omitempty"`
}

// CheckOutput reports a dry run.
type CheckOutput struct {
	Result *model.CheckResult `json:"result"`
}

// DiffInput is the payload for Service.diff
type DiffInput struct {
	OldContent   string `json:"old" description:"Original file content"`
	NewContent   string `json:"new" description:"Updated file content"`
	Path         string `json:"path,omitempty" description:"Display path for diff headers"`
	ContextLines int    `json:"contextLines,omitempty" description:"Number of context lines to include in diff (default 3)"`
}

// DiffOutput holds the generated patch.
type DiffOutput struct {
	Patch string          `json:"patch"`
	Stats model.DiffStats `json:"stats"`
}

// -------------------------------------------------------------------------
// method executors
// -------------------------------------------------------------------------

func (s *Service) apply(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*ApplyInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*ApplyOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	result, err := s.applier.Apply(ctx, input.Request())
	output.Result = result
	if result != nil {
		added, deleted := result.NetLines()
		output.Stats = model.DiffStats{Added: added, Removed: deleted}
	}
	return err
}

func (s *Service) check(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*ApplyInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*CheckOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	output.Result = s.applier.Check(ctx, input.Request())
	return nil
}

func (s *Service) diff(_ context.Context, in, out interface{}) error {
	input, ok := in.(*DiffInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*DiffOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	patch, stats, err := parser.GenerateDiff([]byte(input.OldContent), []byte(input.NewContent), input.Path, input.ContextLines)
	if err != nil && !errors.Is(err, parser.ErrNoChange) {
		return err
	}
	output.Patch = patch
	output.Stats = stats
	return nil
}
