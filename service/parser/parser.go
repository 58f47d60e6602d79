package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/parsly"
	"github.com/viant/patchtx/model"
)

// Parse converts single-file unified-diff text into a ParsedDiff. It never
// fails outright: malformed input yields Valid == false with Error (and
// HunkIndex when a specific hunk is at fault) describing the problem.
//
// CRLF and LF input are both accepted; body lines are stored without
// terminators. Omitted hunk counts default to 1.
func Parse(text string) *model.ParsedDiff {
	p := &parser{
		cursor: parsly.NewCursor("diff", []byte(normalize(text)), 0),
		diff:   &model.ParsedDiff{HunkIndex: -1},
	}
	if err := p.parse(); err != nil {
		p.diff.Valid = false
		p.diff.Error = err.Error()
		p.diff.HunkIndex = err.hunk
		return p.diff
	}
	p.diff.Valid = true
	return p.diff
}

// Failure converts an invalid ParsedDiff into a typed parse error for path.
func Failure(path string, diff *model.ParsedDiff) *model.Error {
	if diff == nil || diff.Valid {
		return nil
	}
	message := diff.Error
	if diff.HunkIndex >= 0 {
		message = strings.TrimPrefix(message, fmt.Sprintf("hunk #%d: ", diff.HunkIndex+1))
	}
	return model.NewParseError(path, diff.HunkIndex, message)
}

type parseError struct {
	hunk    int
	message string
}

func (e *parseError) Error() string {
	if e.hunk < 0 {
		return e.message
	}
	return fmt.Sprintf("hunk #%d: %s", e.hunk+1, e.message)
}

func newParseError(hunk int, format string, args ...interface{}) *parseError {
	return &parseError{hunk: hunk, message: fmt.Sprintf(format, args...)}
}

type parser struct {
	cursor *parsly.Cursor
	diff   *model.ParsedDiff

	headers    int
	git        bool
	gitOld     string
	gitNew     string
	renameFrom string
	renameTo   string
}

func (p *parser) parse() *parseError {
	if err := p.parseHeaders(); err != nil {
		return err
	}
	if err := p.parseHunks(); err != nil {
		return err
	}
	return p.verify()
}

// ---------------- file header ----------------

func (p *parser) parseHeaders() *parseError {
	cur := p.cursor
	for cur.HasMore() {
		line := p.peekLine()
		switch {
		case strings.HasPrefix(line, "@@"):
			p.resolvePaths()
			return nil

		case strings.HasPrefix(line, "--- "):
			if p.headers > 0 {
				return newParseError(-1, "diff contains more than one file header; split multi-file patches first")
			}
			cur.MatchOne(tokOldFile)
			oldPath := p.consumeLine()
			if cur.MatchOne(tokNewFile).Code != tNewFile {
				return newParseError(-1, "malformed header: '--- %s' is not followed by a '+++' line", strings.TrimSpace(oldPath))
			}
			p.diff.OldPath = parsePath(oldPath)
			p.diff.NewPath = parsePath(p.consumeLine())
			p.headers++

		case strings.HasPrefix(line, "+++ "):
			return newParseError(-1, "malformed header: '%s' has no preceding '---' line", line)

		case strings.HasPrefix(line, "diff --git "):
			if p.git || p.headers > 0 {
				return newParseError(-1, "diff contains more than one file header; split multi-file patches first")
			}
			cur.MatchOne(tokGitHeader)
			p.gitOld, p.gitNew = parseGitPaths(p.consumeLine())
			p.git = true

		case strings.HasPrefix(line, "rename from "):
			cur.MatchOne(tokRenameFrom)
			p.renameFrom = parsePath(p.consumeLine())

		case strings.HasPrefix(line, "rename to "):
			cur.MatchOne(tokRenameTo)
			p.renameTo = parsePath(p.consumeLine())

		default:
			// index, mode and similarity lines, or free-form preamble
			p.consumeLine()
		}
	}
	p.resolvePaths()
	return nil
}

func (p *parser) resolvePaths() {
	if p.headers > 0 {
		return
	}
	switch {
	case p.renameFrom != "" || p.renameTo != "":
		p.diff.OldPath, p.diff.NewPath = p.renameFrom, p.renameTo
	case p.git:
		p.diff.OldPath, p.diff.NewPath = p.gitOld, p.gitNew
	}
}

// ---------------- hunks ----------------

func (p *parser) parseHunks() *parseError {
	cur := p.cursor
	for cur.HasMore() {
		line := p.peekLine()
		if strings.TrimSpace(line) == "" {
			p.consumeLine()
			continue
		}
		if p.startsFile(line) {
			return newParseError(-1, "diff contains more than one file header; split multi-file patches first")
		}
		index := len(p.diff.Hunks)
		hunk, err := p.parseHunkHeader(index)
		if err != nil {
			return err
		}
		if err := p.parseHunkBody(index, hunk); err != nil {
			return err
		}
		p.diff.Hunks = append(p.diff.Hunks, hunk)
	}
	return nil
}

func (p *parser) parseHunkHeader(index int) (*model.Hunk, *parseError) {
	cur := p.cursor
	header := p.peekLine()
	malformed := func() (*model.Hunk, *parseError) {
		return nil, newParseError(index, "malformed hunk header %q", header)
	}
	if cur.MatchOne(tokHunkHeader).Code != tHunkHeader {
		return malformed()
	}
	if cur.MatchAfterOptional(tokWS, tokMinus).Code != tMinus {
		return malformed()
	}
	oldStart, oldCount, ok := p.parseRange()
	if !ok {
		return malformed()
	}
	if cur.MatchAfterOptional(tokWS, tokPlus).Code != tPlus {
		return malformed()
	}
	newStart, newCount, ok := p.parseRange()
	if !ok {
		return malformed()
	}
	if cur.MatchAfterOptional(tokWS, tokHunkHeader).Code != tHunkHeader {
		return malformed()
	}
	return &model.Hunk{
		OldStart: oldStart,
		OldCount: oldCount,
		NewStart: newStart,
		NewCount: newCount,
		Section:  strings.TrimSpace(p.consumeLine()),
	}, nil
}

// parseRange parses "start[,count]"; a missing count defaults to 1.
func (p *parser) parseRange() (start, count int, ok bool) {
	cur := p.cursor
	matched := cur.MatchOne(tokNumber)
	if matched.Code != tNumber {
		return 0, 0, false
	}
	start, err := strconv.Atoi(matched.Text(cur))
	if err != nil {
		return 0, 0, false
	}
	if cur.MatchOne(tokComma).Code != tComma {
		return start, 1, true
	}
	matched = cur.MatchOne(tokNumber)
	if matched.Code != tNumber {
		return 0, 0, false
	}
	if count, err = strconv.Atoi(matched.Text(cur)); err != nil {
		return 0, 0, false
	}
	return start, count, true
}

func (p *parser) parseHunkBody(index int, hunk *model.Hunk) *parseError {
	cur := p.cursor
	trailingBlank := 0
	for cur.HasMore() {
		line := p.peekLine()
		if strings.HasPrefix(line, "@@") {
			break
		}
		oldSeen, newSeen := hunk.Counts()
		satisfied := oldSeen >= hunk.OldCount && newSeen >= hunk.NewCount
		if satisfied && p.startsFile(line) {
			break
		}
		if line == "" {
			// generators frequently drop the leading space of blank context lines
			p.consumeLine()
			hunk.Lines = append(hunk.Lines, model.Line{Kind: model.LineContext})
			trailingBlank++
			continue
		}
		if cur.MatchOne(tokNoNewline).Code == tNoNewline {
			p.consumeLine()
			markNoNewline(hunk)
			continue
		}
		var kind model.LineKind
		switch line[0] {
		case ' ':
			kind = model.LineContext
		case '-':
			kind = model.LineDelete
		case '+':
			kind = model.LineInsert
		default:
			return newParseError(index, "unexpected body line %q", line)
		}
		p.consumeLine()
		hunk.Lines = append(hunk.Lines, model.Line{Kind: kind, Text: line[1:]})
		trailingBlank = 0
	}

	// blank separator lines past the declared counts are not part of the hunk
	for trailingBlank > 0 {
		oldSeen, newSeen := hunk.Counts()
		if oldSeen <= hunk.OldCount && newSeen <= hunk.NewCount {
			break
		}
		hunk.Lines = hunk.Lines[:len(hunk.Lines)-1]
		trailingBlank--
	}
	return nil
}

func markNoNewline(hunk *model.Hunk) {
	if len(hunk.Lines) == 0 {
		return
	}
	switch hunk.Lines[len(hunk.Lines)-1].Kind {
	case model.LineContext:
		hunk.OldNoNewline = true
		hunk.NewNoNewline = true
	case model.LineDelete:
		hunk.OldNoNewline = true
	case model.LineInsert:
		hunk.NewNoNewline = true
	}
}

// verify checks declared counts, ordering and creation/deletion constraints.
func (p *parser) verify() *parseError {
	diff := p.diff
	if len(diff.Hunks) == 0 {
		if diff.IsRename() {
			return nil
		}
		return newParseError(-1, "diff contains no hunks")
	}
	for i, hunk := range diff.Hunks {
		oldSeen, newSeen := hunk.Counts()
		if oldSeen != hunk.OldCount || newSeen != hunk.NewCount {
			return newParseError(i, "declared -%d,%d +%d,%d but body has %d old / %d new lines",
				hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount, oldSeen, newSeen)
		}
		if hunk.OldStart == 0 && hunk.OldCount > 0 {
			return newParseError(i, "old start 0 is only valid for an empty old range")
		}
		if diff.IsCreate() && hunk.OldCount > 0 {
			return newParseError(i, "file creation cannot reference existing lines")
		}
		if diff.IsDelete() && hunk.NewCount > 0 {
			return newParseError(i, "file deletion cannot introduce new lines")
		}
		if i == 0 {
			continue
		}
		prev := diff.Hunks[i-1]
		if hunk.OldStart <= prev.OldStart {
			return newParseError(i, "hunks out of order: starts at line %d after a hunk starting at line %d", hunk.OldStart, prev.OldStart)
		}
		if prevEnd := prev.StartIndex() + prev.OldCount; hunk.StartIndex() < prevEnd {
			return newParseError(i, "overlaps previous hunk ending at line %d", prevEnd)
		}
	}
	return nil
}

// ---------------- low-level helpers ----------------

func (p *parser) startsFile(line string) bool {
	if strings.HasPrefix(line, "diff --git ") {
		return true
	}
	return strings.HasPrefix(line, "--- ") && strings.HasPrefix(p.peekNextLine(), "+++ ")
}

func (p *parser) consumeLine() string { return p.consumeUntil('\n') }

// consumeUntil consumes bytes until delim (inclusive) or EOF and returns text
// before delim. If delim is missing, returns the remainder.
func (p *parser) consumeUntil(delim byte) string {
	cur := p.cursor
	start := cur.Pos
	for cur.Pos < cur.InputSize {
		if cur.Input[cur.Pos] == delim {
			txt := string(cur.Input[start:cur.Pos])
			cur.Pos++
			return txt
		}
		cur.Pos++
	}
	return string(cur.Input[start:])
}

func (p *parser) peekLine() string {
	cur := p.cursor
	return lineAt(cur.Input[:cur.InputSize], cur.Pos)
}

func (p *parser) peekNextLine() string {
	cur := p.cursor
	input := cur.Input[:cur.InputSize]
	i := cur.Pos
	for i < len(input) && input[i] != '\n' {
		i++
	}
	if i >= len(input) {
		return ""
	}
	return lineAt(input, i+1)
}

func lineAt(input []byte, pos int) string {
	i := pos
	for i < len(input) && input[i] != '\n' {
		i++
	}
	return string(input[pos:i])
}

func normalize(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// parsePath strips a/ b/ prefixes, timestamps and quoting; /dev/null maps to "".
func parsePath(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\t'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if strings.HasPrefix(text, `"`) {
		if unquoted, err := strconv.Unquote(text); err == nil {
			text = unquoted
		}
	}
	if text == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(text, "a/") || strings.HasPrefix(text, "b/") {
		text = text[2:]
	}
	return text
}

// parseGitPaths splits "a/old b/new" from a diff --git line.
func parseGitPaths(text string) (string, string) {
	text = strings.TrimSpace(text)
	if i := strings.LastIndex(text, " b/"); i > 0 {
		return parsePath(text[:i]), parsePath(text[i+1:])
	}
	fields := strings.Fields(text)
	if len(fields) == 2 {
		return parsePath(fields[0]), parsePath(fields[1])
	}
	return "", ""
}
