package matcher

import (
	"fmt"

	"github.com/viant/patchtx/cache"
	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/service/parser"
)

// Matcher applies parsed hunks to file content.
type Matcher struct {
	window   int
	locators []Locator
	cache    *cache.Cache
}

// Window returns the configured search window.
func (m *Matcher) Window() int { return m.window }

// Apply applies every hunk of diff to original in order. It never writes
// anything; the outcome, including a failure, is described by the result.
func (m *Matcher) Apply(original string, diff *model.ParsedDiff) *model.MatchResult {
	if diff == nil {
		return failed(model.NewParseError("", -1, "diff was nil"))
	}
	if !diff.Valid {
		return failed(parser.Failure(diff.Target(), diff))
	}
	key := m.cacheKey(original, diff)
	if key != "" {
		if result, ok := m.cache.Get(key); ok {
			return result
		}
	}
	result := m.apply(original, diff)
	if key != "" {
		m.cache.Set(key, result)
	}
	return result
}

func (m *Matcher) cacheKey(original string, diff *model.ParsedDiff) string {
	if m.cache == nil {
		return ""
	}
	rendered, err := parser.Render(diff)
	if err != nil {
		return ""
	}
	return cache.Key(original, rendered, m.window)
}

func (m *Matcher) apply(original string, diff *model.ParsedDiff) *model.MatchResult {
	path := diff.Target()
	if diff.IsCreate() && original != "" {
		return failed(model.NewError(model.KindContextMismatch, path, "file to be created already has content"))
	}
	buf := newBuffer(original)
	source := newBuffer(original)
	result := &model.MatchResult{}

	drift, net, floor := 0, 0, 0
	for i, hunk := range diff.Hunks {
		candidate := hunk.StartIndex() + drift
		pos, ok := m.locate(hunk, buf.lines, candidate, floor)
		if !ok {
			return failed(m.mismatch(path, i, hunk, buf, source, candidate-net))
		}
		lines, terms := m.newSide(hunk, buf, pos)
		reachesEOF := pos+hunk.OldCount == len(buf.lines)
		trailing := buf.trailing()
		buf.splice(pos, hunk.OldCount, lines, terms)
		if reachesEOF {
			fixEOF(buf, hunk, trailing)
		}
		terminateInterior(buf, pos-1, pos+len(lines))

		shift := hunk.NewCount - hunk.OldCount
		drift += pos - candidate + shift
		net += shift
		floor = pos + len(lines)
		result.LinesAdded += hunk.Added()
		result.LinesDeleted += hunk.Deleted()
	}

	if diff.IsDelete() && len(buf.lines) > 0 {
		return failed(model.NewError(model.KindContextMismatch, path,
			fmt.Sprintf("deletion leaves %d unmatched lines", len(buf.lines))))
	}
	result.Success = true
	result.NewContent = buf.String()
	return result
}

func (m *Matcher) locate(hunk *model.Hunk, lines []string, candidate, floor int) (int, bool) {
	for _, locator := range m.locators {
		if pos, ok := locator.Locate(hunk, lines, candidate, floor); ok {
			return pos, true
		}
	}
	return -1, false
}

// newSide builds the replacement lines; context lines keep their original terminator.
func (m *Matcher) newSide(hunk *model.Hunk, buf *buffer, pos int) ([]string, []string) {
	lines := make([]string, 0, hunk.NewCount)
	terms := make([]string, 0, hunk.NewCount)
	oldIndex := pos
	for _, line := range hunk.Lines {
		switch line.Kind {
		case model.LineContext:
			lines = append(lines, buf.lines[oldIndex])
			terms = append(terms, buf.terms[oldIndex])
			oldIndex++
		case model.LineDelete:
			oldIndex++
		case model.LineInsert:
			lines = append(lines, line.Text)
			terms = append(terms, buf.eol)
		}
	}
	return lines, terms
}

// fixEOF sets the final terminator after a hunk touching end of file.
func fixEOF(buf *buffer, hunk *model.Hunk, trailing bool) {
	if len(buf.lines) == 0 {
		return
	}
	last := len(buf.lines) - 1
	switch {
	case hunk.NewNoNewline:
		buf.terms[last] = ""
	case hunk.OldNoNewline:
		buf.terms[last] = buf.eol
	case !trailing:
		buf.terms[last] = ""
	case buf.terms[last] == "":
		buf.terms[last] = buf.eol
	}
}

// terminateInterior makes sure no line other than the last one lacks a terminator.
func terminateInterior(buf *buffer, from, to int) {
	last := len(buf.lines) - 1
	if from < 0 {
		from = 0
	}
	for i := from; i < to && i < last; i++ {
		if buf.terms[i] == "" {
			buf.terms[i] = buf.eol
		}
	}
}

func (m *Matcher) mismatch(path string, index int, hunk *model.Hunk, buf, source *buffer, originalIndex int) *model.Error {
	if originalIndex < 0 {
		originalIndex = 0
	}
	candidate := hunk.StartIndex()
	return &model.Error{
		Kind:      model.KindContextMismatch,
		Path:      path,
		HunkIndex: index,
		Line:      originalIndex + 1,
		Offset:    source.offset(originalIndex),
		Expected:  joinLines(hunk.OldLines()),
		Found:     source.slice(originalIndex, hunk.OldCount),
		Message: fmt.Sprintf("context not found within ±%d lines of line %d (declared line %d)",
			m.window, originalIndex+1, candidate+1),
	}
}

func joinLines(lines []string) string {
	b := &buffer{lines: lines}
	return b.slice(0, len(lines))
}

func failed(err *model.Error) *model.MatchResult {
	return &model.MatchResult{Error: err.Error(), Failure: err}
}

// New creates a matcher trying the exact locator first, then the window.
func New(options ...Option) *Matcher {
	ret := &Matcher{window: DefaultWindow}
	for _, option := range options {
		option(ret)
	}
	if len(ret.locators) == 0 {
		ret.locators = []Locator{Exact{}, Window{Size: ret.window}}
	}
	return ret
}

var defaultMatcher = New()

// Apply applies diff to original with the default window and no cache.
func Apply(original string, diff *model.ParsedDiff) *model.MatchResult {
	return defaultMatcher.Apply(original, diff)
}
