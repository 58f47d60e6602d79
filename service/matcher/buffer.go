package matcher

import "strings"

const (
	lf   = "\n"
	crlf = "\r\n"
)

// buffer holds file lines without terminators plus the terminator each line
// carried, so untouched lines are re-emitted byte for byte.
type buffer struct {
	lines []string
	terms []string // "" only for an unterminated final line
	eol   string   // dominant terminator, used for emitted lines
}

func newBuffer(content string) *buffer {
	b := &buffer{eol: dominantEOL(content)}
	for len(content) > 0 {
		i := strings.IndexByte(content, '\n')
		if i < 0 {
			b.lines = append(b.lines, content)
			b.terms = append(b.terms, "")
			break
		}
		line, term := content[:i], lf
		if strings.HasSuffix(line, "\r") {
			line, term = line[:len(line)-1], crlf
		}
		b.lines = append(b.lines, line)
		b.terms = append(b.terms, term)
		content = content[i+1:]
	}
	return b
}

func dominantEOL(content string) string {
	total := strings.Count(content, "\n")
	windows := strings.Count(content, "\r\n")
	if windows > total-windows {
		return crlf
	}
	return lf
}

// trailing reports whether the content ends with a line terminator; empty content counts as terminated.
func (b *buffer) trailing() bool {
	return len(b.terms) == 0 || b.terms[len(b.terms)-1] != ""
}

// matches reports whether want equals the buffer lines starting at pos.
func (b *buffer) matches(pos int, want []string) bool {
	if pos < 0 || pos+len(want) > len(b.lines) {
		return false
	}
	for i, line := range want {
		if b.lines[pos+i] != line {
			return false
		}
	}
	return true
}

// offset returns the character offset of line index.
func (b *buffer) offset(index int) int {
	offset := 0
	for i := 0; i < index && i < len(b.lines); i++ {
		offset += len(b.lines[i]) + len(b.terms[i])
	}
	return offset
}

// slice returns up to count lines from pos joined with LF.
func (b *buffer) slice(pos, count int) string {
	if pos < 0 {
		pos = 0
	}
	if pos >= len(b.lines) {
		return ""
	}
	end := pos + count
	if end > len(b.lines) {
		end = len(b.lines)
	}
	return strings.Join(b.lines[pos:end], lf)
}

// splice replaces oldCount lines at pos with lines and terms.
func (b *buffer) splice(pos, oldCount int, lines, terms []string) {
	tailLines := append([]string{}, b.lines[pos+oldCount:]...)
	tailTerms := append([]string{}, b.terms[pos+oldCount:]...)
	b.lines = append(append(b.lines[:pos], lines...), tailLines...)
	b.terms = append(append(b.terms[:pos], terms...), tailTerms...)
}

func (b *buffer) String() string {
	var sb strings.Builder
	for i, line := range b.lines {
		sb.WriteString(line)
		sb.WriteString(b.terms[i])
	}
	return sb.String()
}
