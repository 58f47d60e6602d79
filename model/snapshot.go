package model

import "sort"

// SnapshotEntry holds the exact original bytes of a path, or its absence.
type SnapshotEntry struct {
	Data    []byte
	Existed bool
}

// Snapshot holds the pre-transaction state of a file tree: every touched
// file, and the ancestor directories that did not exist yet.
type Snapshot struct {
	Files map[string]*SnapshotEntry
	Dirs  []string
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Files: map[string]*SnapshotEntry{}}
}

// Paths returns snapshotted file paths, sorted.
func (s *Snapshot) Paths() []string {
	result := make([]string, 0, len(s.Files))
	for path := range s.Files {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// AddDir records a missing directory once.
func (s *Snapshot) AddDir(dir string) {
	for _, candidate := range s.Dirs {
		if candidate == dir {
			return
		}
	}
	s.Dirs = append(s.Dirs, dir)
}

// MissingDirs returns the recorded directories, deepest first.
func (s *Snapshot) MissingDirs() []string {
	result := append([]string(nil), s.Dirs...)
	sort.Slice(result, func(i, j int) bool {
		if di, dj := depth(result[i]), depth(result[j]); di != dj {
			return di > dj
		}
		return result[i] < result[j]
	})
	return result
}

func depth(path string) int {
	count := 0
	for _, r := range path {
		if r == '/' {
			count++
		}
	}
	return count
}
