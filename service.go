package patchtx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/patchtx/cache"
	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/model/types"
	"github.com/viant/patchtx/progress"
	"github.com/viant/patchtx/service/action/system/patch"
	"github.com/viant/patchtx/service/matcher"
	"github.com/viant/patchtx/service/oracle"
	"github.com/viant/patchtx/service/parser"
	"github.com/viant/patchtx/service/storage"
	"github.com/viant/patchtx/service/transaction"
	"github.com/viant/patchtx/tracing"
)

// Service applies change batches to one project tree.
type Service struct {
	config     *Config
	root       string
	fs         afs.Service
	logger     *slog.Logger
	cache      *cache.Cache
	ownsCache  bool
	oracle     oracle.Oracle
	session    *oracle.Session
	onProgress func(progress.Counters)
	store      *storage.Service
	applier    *transaction.Applier
	actions    *types.Registry
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if err := tracing.InitConfig(s.config.Tracing); err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cache == nil && s.config.Cache.Enabled {
		c, err := cache.New(s.config.Cache.MaxEntries)
		if err != nil {
			return err
		}
		s.cache, s.ownsCache = c, true
	}

	var storeOptions []storage.Option
	if s.fs != nil {
		storeOptions = append(storeOptions, storage.WithFS(s.fs))
	}
	s.store = storage.New(s.root, storeOptions...)
	applierOptions := []transaction.Option{
		transaction.WithLogger(s.logger.With("component", "transaction.Applier")),
		transaction.WithMatcher(matcher.New(matcher.WithWindow(s.config.Window), matcher.WithCache(s.cache))),
		transaction.WithPolicy(s.config.Policy()),
		transaction.WithWorkers(s.config.Workers),
		transaction.WithVerification(s.config.Verify),
		transaction.WithLogOutputLimit(s.config.LogOutputLimit),
		transaction.WithProgress(s.onProgress),
	}
	if s.oracle == nil && s.config.Oracle != nil {
		session, err := s.newSession()
		if err != nil {
			s.Close()
			return err
		}
		s.oracle, s.session = session, session
	}
	if s.oracle != nil {
		applierOptions = append(applierOptions, transaction.WithOracle(s.oracle))
	}
	s.applier = transaction.New(s.store, applierOptions...)
	s.actions = &types.Registry{}
	s.actions.Register(patch.New(s.applier))
	return nil
}

func (s *Service) newSession() (*oracle.Session, error) {
	config := s.config.Oracle
	dir := config.Dir
	if dir == "" {
		dir = s.store.LocalDir()
	}
	session, err := oracle.NewSession(context.Background(),
		oracle.WithHost(config.Host, config.Credentials),
		oracle.WithDir(dir),
		oracle.WithEnv(config.Env))
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle session on %v: %w", config.Host, err)
	}
	s.logger.Debug("verification session started", "host", config.Host, "dir", dir)
	return session, nil
}

// Root returns the project root.
func (s *Service) Root() string { return s.root }

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.config }

// Actions returns the action services backed by this engine.
func (s *Service) Actions() *types.Registry { return s.actions }

// Apply runs request as one transaction. See transaction.Applier.Apply.
func (s *Service) Apply(ctx context.Context, request *model.Request) (*model.TransactionResult, error) {
	return s.applier.Apply(ctx, request)
}

// ApplyPatch applies multi-file unified-diff text as one transaction.
func (s *Service) ApplyPatch(ctx context.Context, text string, verify *model.Verification) (*model.TransactionResult, error) {
	return s.applier.Apply(ctx, &model.Request{Changes: parser.Changes(text), Verify: verify})
}

// Check validates request without writing anything.
func (s *Service) Check(ctx context.Context, request *model.Request) *model.CheckResult {
	return s.applier.Check(ctx, request)
}

// Diff generates a unified diff between two contents.
func (s *Service) Diff(oldContent, newContent []byte, path string, contextLines int) (string, model.DiffStats, error) {
	return parser.GenerateDiff(oldContent, newContent, path, contextLines)
}

// Close releases the cache and the verification session when the service
// created them.
func (s *Service) Close() error {
	if s.ownsCache && s.cache != nil {
		s.cache.Close()
		s.ownsCache = false
	}
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

// New creates a service for the project rooted at root, a directory or an afs URL.
func New(root string, options ...Option) (*Service, error) {
	ret := &Service{root: root, config: DefaultConfig()}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}
