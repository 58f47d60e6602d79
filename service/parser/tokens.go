package parser

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes (start at 1 to avoid clash with parsly.EOF).
const (
	tOldFile = iota + 1
	tNewFile
	tHunkHeader
	tGitHeader
	tRenameFrom
	tRenameTo
	tNoNewline
	tMinus
	tPlus
	tComma
	tNumber
)

var (
	tokWS = parsly.NewToken(0, "WS", matcher.NewWhiteSpace())

	tokOldFile    = parsly.NewToken(tOldFile, "OldFile", matcher.NewFragment("--- "))
	tokNewFile    = parsly.NewToken(tNewFile, "NewFile", matcher.NewFragment("+++ "))
	tokHunkHeader = parsly.NewToken(tHunkHeader, "HunkHeader", matcher.NewFragment("@@"))
	tokGitHeader  = parsly.NewToken(tGitHeader, "GitHeader", matcher.NewFragment("diff --git "))
	tokRenameFrom = parsly.NewToken(tRenameFrom, "RenameFrom", matcher.NewFragment("rename from "))
	tokRenameTo   = parsly.NewToken(tRenameTo, "RenameTo", matcher.NewFragment("rename to "))
	tokNoNewline  = parsly.NewToken(tNoNewline, "NoNewline", matcher.NewByte('\\'))

	tokMinus  = parsly.NewToken(tMinus, "-", matcher.NewByte('-'))
	tokPlus   = parsly.NewToken(tPlus, "+", matcher.NewByte('+'))
	tokComma  = parsly.NewToken(tComma, ",", matcher.NewByte(','))
	tokNumber = parsly.NewToken(tNumber, "Number", &numberMatcher{})
)

// numberMatcher matches an unsigned decimal number
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	matched := 0
	for i := cursor.Pos; i < cursor.InputSize; i++ {
		if input[i] < '0' || input[i] > '9' {
			break
		}
		matched++
	}
	return matched
}
