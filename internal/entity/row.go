package entity

import (
	"strings"

	"github.com/joseph-ayodele/exam-grader/constants"
)

// Row is one exam answer. Fields keeps the source cells in their original
// positions; the grade cell is carried separately in Grade and only merged back
// into Fields when the row is rendered for an output sheet.
type Row struct {
	Fields []string `json:"fields"`
	Grade  Grade    `json:"grade"`
}

// NewRow pads fields to the minimum row width.
func NewRow(fields []string) Row {
	out := make([]string, len(fields), max(len(fields), constants.MinColumns))
	copy(out, fields)
	for len(out) < constants.MinColumns {
		out = append(out, "")
	}
	return Row{Fields: out}
}

func (r Row) field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// QuestionID returns the trimmed question-number cell.
func (r Row) QuestionID() string { return strings.TrimSpace(r.field(constants.QuestionColumn)) }

// AnswerText returns the trimmed answer cell.
func (r Row) AnswerText() string { return strings.TrimSpace(r.field(constants.AnswerColumn)) }

// Cells renders the row for an output sheet, with the grade in its column.
func (r Row) Cells() []string {
	out := NewRow(r.Fields).Fields
	out[constants.GradeColumn] = r.Grade.String()
	return out
}
