package matcher

import "github.com/viant/patchtx/model"

// DefaultWindow is the number of lines searched either side of the candidate.
const DefaultWindow = 5

// Locator finds the buffer index at which a hunk's old side applies.
// candidate is the expected zero-based index; positions before floor belong
// to already applied hunks and are never returned.
type Locator interface {
	Locate(hunk *model.Hunk, lines []string, candidate, floor int) (int, bool)
}

// Exact accepts only the candidate position.
type Exact struct{}

// Locate implements Locator.
func (Exact) Locate(hunk *model.Hunk, lines []string, candidate, floor int) (int, bool) {
	if candidate < floor {
		return -1, false
	}
	b := &buffer{lines: lines}
	return candidate, b.matches(candidate, hunk.OldLines())
}

// Window searches up to Size lines around the candidate, nearest first;
// at equal distance the later position wins.
type Window struct {
	Size int
}

// Locate implements Locator.
func (w Window) Locate(hunk *model.Hunk, lines []string, candidate, floor int) (int, bool) {
	b := &buffer{lines: lines}
	want := hunk.OldLines()
	for distance := 0; distance <= w.Size; distance++ {
		for _, pos := range []int{candidate + distance, candidate - distance} {
			if pos < floor {
				continue
			}
			if b.matches(pos, want) {
				return pos, true
			}
		}
	}
	return -1, false
}
