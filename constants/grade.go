package constants

import (
	"strings"
)

// Positional layout of a normalized answer row (0-based).
const (
	QuestionColumn = 2
	GradeColumn    = 5
	AnswerColumn   = 6

	// MinColumns is the width every row is padded to before grading.
	MinColumns = 7
)

// ErrorLabel is what the classifier returns when it produced no predictions.
const ErrorLabel = "ERROR"

// ErrorPrefix marks a failed row in the grade column of an output artifact.
const ErrorPrefix = "ERROR: "

var validQuestions = []int{1, 2, 3, 4}

// ValidQuestions returns the question numbers a row may reference.
func ValidQuestions() []int {
	out := make([]int, len(validQuestions))
	copy(out, validQuestions)
	return out
}

// IsValidQuestion reports whether n is one of the configured questions.
func IsValidQuestion(n int) bool {
	for _, q := range validQuestions {
		if q == n {
			return true
		}
	}
	return false
}

var gradeLabels = map[string]string{
	"grade-0": "0",
	"grade-1": "1",
	"grade-2": "2",
}

// CanonicalizeLabel maps a classifier label onto the grade written to the sheet.
// Unknown labels pass through verbatim.
func CanonicalizeLabel(label string) string {
	if g, ok := gradeLabels[strings.TrimSpace(label)]; ok {
		return g
	}
	return label
}
