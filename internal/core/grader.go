package core

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/classify"
	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/entity"
)

// Grader validates and grades a single row.
type Grader struct {
	classifier classify.Classifier
	models     map[int]string
	logger     *slog.Logger
}

// NewGrader copies models, so later changes by the caller are not observed.
func NewGrader(classifier classify.Classifier, models map[int]string, logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[int]string, len(models))
	for q, uri := range models {
		m[q] = uri
	}
	return &Grader{classifier: classifier, models: m, logger: logger}
}

// GradeRow sets row.Grade and returns it. Every failure, including a panic in
// the classifier, ends up as an error grade on the row. If ctx is cancelled
// while the classifier runs, the row is left untouched and an empty grade is
// returned.
func (g *Grader) GradeRow(ctx context.Context, row *entity.Row) entity.Grade {
	grade := g.grade(ctx, row)
	if grade.IsEmpty() {
		return grade
	}
	row.Grade = grade
	return grade
}

func (g *Grader) grade(ctx context.Context, row *entity.Row) entity.Grade {
	qid := row.QuestionID()
	if qid == "" {
		return entity.Failed("question number missing")
	}
	q, err := strconv.Atoi(qid)
	if err != nil {
		return entity.Failedf("invalid question number (%s)", qid)
	}
	if !constants.IsValidQuestion(q) {
		return entity.Failedf("question number must be in range 1-4 (%d)", q)
	}
	text := row.AnswerText()
	if text == "" {
		return entity.Failed("answer text missing")
	}
	model := g.models[q]
	if model == "" {
		return entity.Failedf("model not configured for question %d", q)
	}

	label, err := g.classify(ctx, model, text)
	if err != nil {
		if ctx.Err() != nil {
			return entity.Grade{}
		}
		g.logger.Warn("grading.row.classify_failed", append(common.LogAttrs(ctx), "question", q, "error", err)...)
		return entity.Failed(err.Error())
	}
	return entity.Graded(label)
}

func (g *Grader) classify(ctx context.Context, model, text string) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return g.classifier.Classify(ctx, model, text)
}
