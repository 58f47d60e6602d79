// Package snapshot captures the pre-transaction state of files and puts it
// back on rollback. A snapshot lives in memory for one transaction only.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/service/storage"
)

// Service captures and restores file state through storage.
type Service struct {
	store *storage.Service
}

// Capture records the exact bytes, or the absence, of every path, along
// with any ancestor directories a write would create.
func (s *Service) Capture(ctx context.Context, paths ...string) (*model.Snapshot, error) {
	snapshot := model.NewSnapshot()
	for _, path := range paths {
		if _, ok := snapshot.Files[path]; ok {
			continue
		}
		data, existed, err := s.store.Read(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %v: %w", path, err)
		}
		snapshot.Files[path] = &model.SnapshotEntry{Data: data, Existed: existed}
		if existed {
			continue
		}
		dirs, err := s.store.MissingDirs(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %v: %w", path, err)
		}
		for _, dir := range dirs {
			snapshot.AddDir(dir)
		}
	}
	return snapshot, nil
}

// Restore writes every snapshotted file back, removes files that did not
// exist, then removes the directories the transaction created once they are
// empty. It keeps going after a failure and returns the restored file paths
// along with all failures joined.
func (s *Service) Restore(ctx context.Context, snapshot *model.Snapshot) ([]string, error) {
	if snapshot == nil {
		return nil, nil
	}
	var restored []string
	var errs []error
	for _, path := range snapshot.Paths() {
		entry := snapshot.Files[path]
		var err error
		if entry.Existed {
			err = s.store.Write(ctx, path, entry.Data)
		} else {
			err = s.store.Remove(ctx, path)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %v: %w", path, err))
			continue
		}
		restored = append(restored, path)
	}
	for _, dir := range snapshot.MissingDirs() {
		if _, err := s.store.RemoveEmptyDir(ctx, dir); err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %v: %w", dir, err))
		}
	}
	return restored, errors.Join(errs...)
}

// New creates a snapshot service.
func New(store *storage.Service) *Service {
	return &Service{store: store}
}
