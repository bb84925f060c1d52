package entity

import (
	"math"
	"strconv"
	"time"
)

// Summary is reported when a job completes.
type Summary struct {
	Filename         string  `json:"filename"`
	RecordsProcessed int     `json:"recordsProcessed"`
	TotalRecords     int     `json:"totalRecords"`
	ErrorCount       int     `json:"errorCount"`
	AvgScore         float64 `json:"avgScore"`
	ProcessingTime   string  `json:"processingTime"`
}

// Summarize derives the grade summary from a fully graded row set.
func Summarize(filename string, rows []Row, elapsed time.Duration) Summary {
	s := Summary{Filename: filename, TotalRecords: len(rows)}
	var sum float64
	var n int
	for _, r := range rows {
		switch r.Grade.Kind {
		case GradeError:
			s.ErrorCount++
		case GradeValue:
			s.RecordsProcessed++
			if v, ok := r.Grade.Score(); ok {
				sum += v
				n++
			}
		}
	}
	if n > 0 {
		s.AvgScore = round2(sum / float64(n))
	}
	s.ProcessingTime = formatSeconds(elapsed)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(round2(d.Seconds()), 'f', -1, 64) + "s"
}
