package entity

import "testing"

func TestNewRowPads(t *testing.T) {
	r := NewRow([]string{"a", "b", "3"})
	if len(r.Fields) != 7 {
		t.Fatalf("len = %d, want 7", len(r.Fields))
	}
	if r.QuestionID() != "3" {
		t.Errorf("QuestionID = %q", r.QuestionID())
	}
	if r.AnswerText() != "" {
		t.Errorf("AnswerText = %q, want empty", r.AnswerText())
	}
}

func TestNewRowKeepsExtraColumns(t *testing.T) {
	r := NewRow([]string{"0", "1", "2", "3", "4", "5", "6", "7", "8"})
	if len(r.Fields) != 9 {
		t.Fatalf("len = %d, want 9", len(r.Fields))
	}
}

func TestCells(t *testing.T) {
	r := NewRow([]string{"id", "name", " 2 ", "", "", "old", "  answer  "})

	r.Grade = Graded("1")
	if got := r.Cells()[5]; got != "1" {
		t.Errorf("grade cell = %q, want 1", got)
	}

	r.Grade = Failed("answer text missing")
	if got := r.Cells()[5]; got != "ERROR: answer text missing" {
		t.Errorf("grade cell = %q", got)
	}
	if r.Fields[5] != "old" {
		t.Errorf("Cells must not mutate Fields, got %q", r.Fields[5])
	}
	if r.AnswerText() != "answer" || r.QuestionID() != "2" {
		t.Errorf("trim: q=%q a=%q", r.QuestionID(), r.AnswerText())
	}
}

func TestGradeScore(t *testing.T) {
	tests := []struct {
		g    Grade
		want float64
		ok   bool
	}{
		{Graded("2"), 2, true},
		{Graded("ERROR"), 0, false},
		{Graded("excellent"), 0, false},
		{Graded("NaN"), 0, false},
		{Graded("-Inf"), 0, false},
		{Graded("1e400"), 0, false},
		{Failed("3"), 0, false},
		{Grade{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.g.Score()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%+v.Score() = %v,%v want %v,%v", tt.g, got, ok, tt.want, tt.ok)
		}
	}
}
