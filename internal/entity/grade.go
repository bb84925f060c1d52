package entity

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/exam-grader/constants"
)

// GradeKind tags the variant held by a Grade.
type GradeKind string

const (
	GradeEmpty GradeKind = ""
	GradeValue GradeKind = "value"
	GradeError GradeKind = "error"
)

// Grade is the outcome slot of a row: nothing yet, a label, or a failure reason.
type Grade struct {
	Kind   GradeKind `json:"kind,omitempty"`
	Value  string    `json:"value,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// Graded builds a successful grade.
func Graded(label string) Grade { return Grade{Kind: GradeValue, Value: label} }

// Failed builds an error grade.
func Failed(reason string) Grade { return Grade{Kind: GradeError, Reason: reason} }

// Failedf builds an error grade from a format string.
func Failedf(format string, args ...any) Grade { return Failed(fmt.Sprintf(format, args...)) }

func (g Grade) IsEmpty() bool { return g.Kind == GradeEmpty }
func (g Grade) IsError() bool { return g.Kind == GradeError }

// Score returns the numeric value of a successful grade. Labels such as
// "NaN", "Inf" or out-of-range numbers have no score.
func (g Grade) Score() (float64, bool) {
	if g.Kind != GradeValue {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(g.Value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String renders the grade the way it is written into an output sheet.
func (g Grade) String() string {
	switch g.Kind {
	case GradeValue:
		return g.Value
	case GradeError:
		return constants.ErrorPrefix + g.Reason
	default:
		return ""
	}
}
