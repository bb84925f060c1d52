package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/joseph-ayodele/exam-grader/internal/classify"
	"github.com/joseph-ayodele/exam-grader/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func row(question, answer string) entity.Row {
	return entity.NewRow([]string{"id", "student", question, "", "", "", answer})
}

var allModels = map[int]string{1: "m1", 2: "m2", 3: "m3", 4: "m4"}

func constClassifier(label string) classify.Classifier {
	return classify.ClassifierFunc(func(context.Context, string, string) (string, error) {
		return label, nil
	})
}

func TestGradeRowValidation(t *testing.T) {
	tests := []struct {
		name   string
		row    entity.Row
		models map[int]string
		want   string
	}{
		{"missing question", row("", "text"), allModels, "ERROR: question number missing"},
		{"blank question", row("   ", "text"), allModels, "ERROR: question number missing"},
		{"not a number", row("abc", "text"), allModels, "ERROR: invalid question number (abc)"},
		{"zero", row("0", "text"), allModels, "ERROR: question number must be in range 1-4 (0)"},
		{"five", row("5", "text"), allModels, "ERROR: question number must be in range 1-4 (5)"},
		{"empty answer", row("2", "   "), allModels, "ERROR: answer text missing"},
		{"no model", row("3", "text"), map[int]string{1: "m1"}, "ERROR: model not configured for question 3"},
		{"graded", row("1", "text"), allModels, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGrader(constClassifier("2"), tt.models, discardLogger())
			r := tt.row
			got := g.GradeRow(context.Background(), &r)
			if got.String() != tt.want {
				t.Errorf("grade = %q, want %q", got.String(), tt.want)
			}
			if r.Grade != got {
				t.Errorf("row grade %+v != returned %+v", r.Grade, got)
			}
		})
	}
}

func TestGradeRowIdempotentErrors(t *testing.T) {
	g := NewGrader(constClassifier("1"), allModels, discardLogger())
	r := row("abc", "text")
	first := g.GradeRow(context.Background(), &r)
	second := g.GradeRow(context.Background(), &r)
	if first != second {
		t.Errorf("first %+v, second %+v", first, second)
	}
}

func TestGradeRowClassifierFailure(t *testing.T) {
	failing := classify.ClassifierFunc(func(context.Context, string, string) (string, error) {
		return "", &classify.RemoteError{Status: 503, Body: "unavailable"}
	})
	g := NewGrader(failing, allModels, discardLogger())
	r := row("4", "text")
	got := g.GradeRow(context.Background(), &r)
	if got.String() != "ERROR: HTTP error 503: unavailable" {
		t.Errorf("grade = %q", got.String())
	}
}

func TestGradeRowClassifierPanic(t *testing.T) {
	panicking := classify.ClassifierFunc(func(context.Context, string, string) (string, error) {
		panic("nil map")
	})
	g := NewGrader(panicking, allModels, discardLogger())
	r := row("1", "text")
	got := g.GradeRow(context.Background(), &r)
	if !got.IsError() {
		t.Fatalf("grade = %+v, want error", got)
	}
}

func TestGradeRowCancelledLeavesRow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocking := classify.ClassifierFunc(func(ctx context.Context, _, _ string) (string, error) {
		cancel()
		return "", errors.Join(errors.New("aborted"), ctx.Err())
	})
	g := NewGrader(blocking, allModels, discardLogger())
	r := row("1", "text")
	got := g.GradeRow(ctx, &r)
	if !got.IsEmpty() || !r.Grade.IsEmpty() {
		t.Errorf("grade = %+v, row grade = %+v, want empty", got, r.Grade)
	}
}

func TestGradeRowPassesModelAndText(t *testing.T) {
	var gotModel, gotText string
	rec := classify.ClassifierFunc(func(_ context.Context, model, text string) (string, error) {
		gotModel, gotText = model, text
		return "ERROR", nil
	})
	g := NewGrader(rec, allModels, discardLogger())
	r := row(" 3 ", "  the answer ")
	got := g.GradeRow(context.Background(), &r)
	if gotModel != "m3" || gotText != "the answer" {
		t.Errorf("model=%q text=%q", gotModel, gotText)
	}
	if got.IsError() || got.String() != "ERROR" {
		t.Errorf("sentinel label must be a value grade, got %+v", got)
	}
}
