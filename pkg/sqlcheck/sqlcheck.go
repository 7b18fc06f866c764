// Package sqlcheck locates the SQL statements inside a submission text and
// reports the ones that do not parse. The verdict feeds the correction's
// weaknesses; it never blocks the pipeline.
package sqlcheck

import (
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// Issue is one statement the parser rejected.
type Issue struct {
	// Position is the 1-based rank of the statement among those detected
	// in the text.
	Position int
	// Statement is the offending statement, trimmed.
	Statement string
	// Detail carries the parser error.
	Detail string
}

// statementStart matches the opening keyword of the statement forms the
// parser grammar covers. Prose around a statement is common in submissions,
// so detection starts at the keyword, not at the chunk boundary.
var statementStart = regexp.MustCompile(`(?i)\b(select|insert|update|delete|create|alter|drop)\b`)

// Check splits the text on ";" and parses every chunk containing a SQL
// statement. Chunks without one are ignored: a submission with no SQL at all
// yields no issues, absence of SQL being the grader's concern rather than a
// syntax fault.
func Check(text string) []Issue {
	var issues []Issue
	position := 0

	for _, chunk := range strings.Split(text, ";") {
		loc := statementStart.FindStringIndex(chunk)
		if loc == nil {
			continue
		}

		statement := strings.TrimSpace(chunk[loc[0]:])
		position++

		if _, err := sqlparser.Parse(statement); err != nil {
			issues = append(issues, Issue{
				Position:  position,
				Statement: statement,
				Detail:    err.Error(),
			})
		}
	}

	return issues
}
