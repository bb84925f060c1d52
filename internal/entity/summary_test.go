package entity

import (
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	rows := []Row{
		{Grade: Graded("0")},
		{Grade: Graded("1")},
		{Grade: Failed("x")},
		{Grade: Graded("2")},
	}
	s := Summarize("graded_x.csv", rows, 1500*time.Millisecond)

	if s.AvgScore != 1.0 {
		t.Errorf("AvgScore = %v, want 1.0", s.AvgScore)
	}
	if s.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", s.ErrorCount)
	}
	if s.RecordsProcessed != 3 {
		t.Errorf("RecordsProcessed = %d, want 3", s.RecordsProcessed)
	}
	if s.TotalRecords != 4 {
		t.Errorf("TotalRecords = %d, want 4", s.TotalRecords)
	}
	if s.ProcessingTime != "1.5s" {
		t.Errorf("ProcessingTime = %q, want 1.5s", s.ProcessingTime)
	}
}

func TestSummarizeRounding(t *testing.T) {
	rows := []Row{{Grade: Graded("1")}, {Grade: Graded("2")}, {Grade: Graded("2")}}
	if got := Summarize("f", rows, 0).AvgScore; got != 1.67 {
		t.Errorf("AvgScore = %v, want 1.67", got)
	}
}

func TestSummarizeNoNumericGrades(t *testing.T) {
	rows := []Row{{Grade: Graded("ERROR")}, {Grade: Failed("boom")}}
	s := Summarize("f", rows, 0)
	if s.AvgScore != 0 {
		t.Errorf("AvgScore = %v, want 0", s.AvgScore)
	}
	if s.RecordsProcessed+s.ErrorCount != s.TotalRecords {
		t.Errorf("processed %d + errors %d != total %d", s.RecordsProcessed, s.ErrorCount, s.TotalRecords)
	}
}

func TestSummarizeIgnoresNonFiniteLabels(t *testing.T) {
	rows := []Row{{Grade: Graded("1")}, {Grade: Graded("NaN")}, {Grade: Graded("+Inf")}}
	s := Summarize("f", rows, 0)
	if s.AvgScore != 1 {
		t.Errorf("AvgScore = %v, want 1", s.AvgScore)
	}
	if s.RecordsProcessed != 3 {
		t.Errorf("RecordsProcessed = %d, want 3", s.RecordsProcessed)
	}
}
