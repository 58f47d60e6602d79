package transaction

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/viant/patchtx/internal/clock"
	"github.com/viant/patchtx/internal/idgen"
	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/policy"
	"github.com/viant/patchtx/progress"
	"github.com/viant/patchtx/service/matcher"
	"github.com/viant/patchtx/service/oracle"
	"github.com/viant/patchtx/service/snapshot"
	"github.com/viant/patchtx/service/storage"
	"github.com/viant/patchtx/tracing"
)

const (
	// DefaultWorkers bounds concurrent reads during validation.
	DefaultWorkers = 4
	// DefaultLogOutputLimit caps verification output written to logs.
	DefaultLogOutputLimit = 4096
)

const (
	outcomeCommitted      = "committed"
	outcomeRejected       = "rejected"
	outcomeRolledBack     = "rolled_back"
	outcomeRollbackFailed = "rollback_failed"

	reasonApply        = "apply"
	reasonVerification = "verification"
	reasonTimeout      = "timeout"
)

// Applier runs batches of changes as all-or-nothing transactions against one
// file tree. Callers serialise transactions on the same tree.
type Applier struct {
	store          *storage.Service
	snapshots      *snapshot.Service
	matcher        *matcher.Matcher
	policy         *policy.Policy
	oracle         oracle.Oracle
	verification   *model.Verification
	workers        int
	logOutputLimit int
	onProgress     func(progress.Counters)
	logger         *slog.Logger
}

// Apply runs request through guardrails, validation, snapshot, apply and
// verification. Every failure is described by the result; the returned error
// is non-nil only when a rollback could not restore the tree, and then it
// wraps model.ErrRollbackFailed.
func (a *Applier) Apply(ctx context.Context, request *model.Request) (result *model.TransactionResult, err error) {
	if request == nil {
		request = &model.Request{}
	}
	started := clock.Now()
	result = &model.TransactionResult{ID: idgen.Transaction(), State: model.StateIdle, StartedAt: started}
	ctx, tracker := progress.WithNewTracker(ctx, result.ID, a.onProgress)
	ctx, span := tracing.StartSpan(ctx, "patchtx.transaction")
	span.WithAttributes(map[string]string{"transaction.id": result.ID}).WithInt("changes", len(request.Changes))
	logger := a.logger.With("transaction", result.ID)
	defer func() {
		result.Elapsed = clock.Since(started)
		span.WithAttributes(map[string]string{"state": string(result.State)}).WithBool("rollback", result.RollbackPerformed)
		spanErr := err
		if spanErr == nil && result.Error != nil {
			spanErr = result.Error
		}
		tracing.EndSpan(span, spanErr)
		files := 0
		if result.Success {
			files = len(result.ModifiedFiles)
		}
		recordTransaction(ctx, outcome(result, err), result.Elapsed, files)
	}()
	tracker.Update(progress.Delta{Total: len(request.Changes)})

	plans, failure := a.validate(ctx, logger, result, request)
	if failure != nil {
		result.Error = failure
		progress.UpdateCtx(ctx, progress.Delta{Failed: 1})
		a.transition(ctx, logger, result, model.StateRolledBack)
		return result, nil
	}

	a.transition(ctx, logger, result, model.StateSnapshotting)
	snap, captureErr := a.snapshots.Capture(ctx, touched(plans)...)
	if captureErr != nil {
		result.Error = &model.Error{Kind: model.KindApply, HunkIndex: -1, Message: "snapshot failed", Err: captureErr}
		progress.UpdateCtx(ctx, progress.Delta{Failed: 1})
		a.transition(ctx, logger, result, model.StateRolledBack)
		return result, nil
	}

	a.transition(ctx, logger, result, model.StateApplying)
	if failure := a.write(ctx, result, plans); failure != nil {
		result.Error = failure
		progress.UpdateCtx(ctx, progress.Delta{Failed: 1})
		return result, a.rollback(ctx, logger, result, snap, reasonApply)
	}
	added, deleted := result.NetLines()
	logger.Info("changes applied", "files", len(result.ModifiedFiles), "added", added, "deleted", deleted)

	verification := request.Verify
	if !verification.Enabled() {
		verification = a.verification
	}
	if verification.Enabled() {
		a.transition(ctx, logger, result, model.StateVerifying)
		if failure, reason := a.verify(ctx, logger, result, verification); failure != nil {
			result.Error = failure
			return result, a.rollback(ctx, logger, result, snap, reason)
		}
	}
	result.Success = true
	a.transition(ctx, logger, result, model.StateCommitted)
	return result, nil
}

// Check runs guardrails and validation only and reports per-change match
// results. It never writes.
func (a *Applier) Check(ctx context.Context, request *model.Request) *model.CheckResult {
	if request == nil {
		request = &model.Request{}
	}
	plans, failure := a.validate(ctx, a.logger, nil, request)
	result := &model.CheckResult{Success: failure == nil, Error: failure}
	for _, p := range plans {
		if p.match == nil {
			continue
		}
		result.Matches = append(result.Matches, &model.FileMatch{Path: p.change.Path, Result: p.match})
	}
	return result
}

// validate applies guardrails, parses every patch and dry-runs it against the
// current content. The reported failure is the one with the lowest batch index.
func (a *Applier) validate(ctx context.Context, logger *slog.Logger, result *model.TransactionResult, request *model.Request) (plans []*plan, failure *model.Error) {
	ctx, span := tracing.StartSpan(ctx, "patchtx.validate")
	defer func() {
		if failure != nil {
			a.logRejection(logger, failure)
		}
		tracing.EndSpan(span, asError(failure))
	}()

	for i, change := range request.Changes {
		if change == nil {
			return nil, model.NewParseError("", -1, fmt.Sprintf("change #%d is empty", i+1))
		}
	}
	pol := a.policyFor(ctx)
	if failure = pol.Check(request.Paths()); failure != nil {
		return nil, failure
	}
	plans = make([]*plan, len(request.Changes))
	for i, change := range request.Changes {
		if err := change.Validate(); err != nil {
			return nil, model.NewParseError(change.Path, -1, err.Error())
		}
		plans[i] = newPlan(i, change)
	}

	a.transition(ctx, logger, result, model.StateValidating)
	for _, p := range plans {
		if failure = p.parse(); failure != nil {
			return nil, failure
		}
	}
	if failure = checkTargets(pol, plans); failure != nil {
		return nil, failure
	}
	return plans, a.dryRun(ctx, plans)
}

// checkTargets applies guardrails to rename paths found in diff headers and
// rejects batches that touch one path twice.
func checkTargets(pol *policy.Policy, plans []*plan) *model.Error {
	seen := make(map[string]bool, len(plans))
	for _, p := range plans {
		if failure := p.resolveRename(pol); failure != nil {
			return failure
		}
		for _, path := range p.paths() {
			if seen[path] {
				return model.NewGuardrailError(path, policy.RuleDuplicate, "path is touched by more than one change in the batch")
			}
			seen[path] = true
		}
	}
	return nil
}

func (a *Applier) dryRun(ctx context.Context, plans []*plan) *model.Error {
	failures := make([]*model.Error, len(plans))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.workers)
	for i, p := range plans {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			if failures[i] = p.load(groupCtx, a.store, a.matcher.Apply); failures[i] == nil {
				progress.UpdateCtx(groupCtx, progress.Delta{Validated: 1})
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return &model.Error{Kind: model.KindApply, HunkIndex: -1, Message: "validation interrupted", Err: err}
	}
	for _, failure := range failures {
		if failure != nil {
			return failure
		}
	}
	return nil
}

// write applies every plan in batch order.
func (a *Applier) write(ctx context.Context, result *model.TransactionResult, plans []*plan) (failure *model.Error) {
	ctx, span := tracing.StartSpan(ctx, "patchtx.apply")
	defer func() { tracing.EndSpan(span, asError(failure)) }()
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			return model.NewApplyError(p.target, err)
		}
		if failure = a.writePlan(ctx, p); failure != nil {
			return failure
		}
		result.ModifiedFiles = append(result.ModifiedFiles, p.paths()...)
		result.Files = append(result.Files, p.stat)
		progress.UpdateCtx(ctx, progress.Delta{Applied: 1})
	}
	span.WithInt("files", len(result.ModifiedFiles))
	return nil
}

func (a *Applier) writePlan(ctx context.Context, p *plan) *model.Error {
	switch p.operation {
	case model.OperationDelete:
		if err := a.store.Remove(ctx, p.source); err != nil {
			return model.NewApplyError(p.source, err)
		}
	case model.OperationRename:
		if err := a.store.Write(ctx, p.target, p.content); err != nil {
			return model.NewApplyError(p.target, err)
		}
		if err := a.store.Remove(ctx, p.source); err != nil {
			return model.NewApplyError(p.source, err)
		}
	default:
		if err := a.store.Write(ctx, p.target, p.content); err != nil {
			return model.NewApplyError(p.target, err)
		}
	}
	return nil
}

// verify runs the oracle and returns the failure with its rollback reason.
func (a *Applier) verify(ctx context.Context, logger *slog.Logger, result *model.TransactionResult, verification *model.Verification) (*model.Error, string) {
	ctx, span := tracing.StartSpan(ctx, "patchtx.verify")
	span.WithAttributes(map[string]string{"command": verification.Command})
	run, err := a.oracle.Run(ctx, verification)
	result.ExitCode = -1
	if run != nil {
		result.VerificationOutput = run.Output
		result.ExitCode = run.ExitCode
	}
	span.WithInt("exit_code", result.ExitCode)

	var failure *model.Error
	reason := reasonVerification
	switch {
	case err != nil:
		failure = &model.Error{Kind: model.KindVerification, HunkIndex: -1, ExitCode: result.ExitCode, Message: "verification could not run", Err: err}
	case run.TimedOut:
		reason = reasonTimeout
		failure = &model.Error{Kind: model.KindVerification, HunkIndex: -1, ExitCode: result.ExitCode,
			Message: fmt.Sprintf("verification timed out after %s", oracle.Timeout(verification))}
	case !run.Passed():
		failure = &model.Error{Kind: model.KindVerification, HunkIndex: -1, ExitCode: result.ExitCode,
			Message: fmt.Sprintf("verification exited with code %d", run.ExitCode)}
	}
	if failure != nil {
		logger.Warn("verification failed",
			"exitCode", result.ExitCode,
			"output", oracle.Truncate(result.VerificationOutput, a.logOutputLimit))
	}
	tracing.EndSpan(span, asError(failure))
	return failure, reason
}

// rollback restores every snapshotted path. It runs to completion even when
// the caller's context was cancelled.
func (a *Applier) rollback(ctx context.Context, logger *slog.Logger, result *model.TransactionResult, snap *model.Snapshot, reason string) error {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.StartSpan(ctx, "patchtx.rollback")
	span.WithAttributes(map[string]string{"reason": reason})
	restored, err := a.snapshots.Restore(ctx, snap)
	result.RollbackPerformed = true
	progress.UpdateCtx(ctx, progress.Delta{Restored: len(restored)})
	a.transition(ctx, logger, result, model.StateRolledBack)
	recordRollback(ctx, reason)
	if err != nil {
		fatal := &model.Error{
			Kind:      model.KindRollback,
			HunkIndex: -1,
			Message:   fmt.Sprintf("restored %d of %d files, the tree may be inconsistent", len(restored), len(snap.Files)),
			Err:       err,
		}
		logger.Error("rollback failed", "reason", reason, "restored", len(restored), "files", len(snap.Files), "error", err)
		tracing.EndSpan(span, fatal)
		return fatal
	}
	logger.Warn("transaction rolled back", "reason", reason, "restored", len(restored))
	tracing.EndSpan(span, nil)
	return nil
}

func (a *Applier) transition(ctx context.Context, logger *slog.Logger, result *model.TransactionResult, state model.State) {
	if result == nil {
		return
	}
	logger.Debug("state changed", "from", result.State, "to", state)
	result.State = state
	progress.SetStateCtx(ctx, state)
}

func (a *Applier) logRejection(logger *slog.Logger, failure *model.Error) {
	if failure.Kind == model.KindGuardrail {
		logger.Warn("change rejected by guardrail", "path", failure.Path, "rule", failure.Rule, "detail", failure.Message)
		return
	}
	logger.Warn("validation failed", "path", failure.Path, "hunk", failure.HunkIndex, "kind", failure.Kind, "detail", failure.Error())
}

func (a *Applier) policyFor(ctx context.Context) *policy.Policy {
	if p := policy.FromContext(ctx); p != nil {
		return p
	}
	return a.policy
}

func touched(plans []*plan) []string {
	var result []string
	for _, p := range plans {
		result = append(result, p.paths()...)
	}
	return result
}

func outcome(result *model.TransactionResult, err error) string {
	switch {
	case err != nil:
		return outcomeRollbackFailed
	case result.Success:
		return outcomeCommitted
	case result.RollbackPerformed:
		return outcomeRolledBack
	default:
		return outcomeRejected
	}
}

func asError(failure *model.Error) error {
	if failure == nil {
		return nil
	}
	return failure
}

// New creates an applier over store. Without options it uses the default
// matcher window, the default guardrail policy and a shell oracle running in
// the store's local root.
func New(store *storage.Service, options ...Option) *Applier {
	ret := &Applier{
		store:          store,
		snapshots:      snapshot.New(store),
		workers:        DefaultWorkers,
		logOutputLimit: DefaultLogOutputLimit,
		logger:         slog.Default().With("component", "transaction.Applier"),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.matcher == nil {
		ret.matcher = matcher.New()
	}
	if ret.oracle == nil {
		ret.oracle = oracle.NewShell(store.LocalDir())
	}
	return ret
}
