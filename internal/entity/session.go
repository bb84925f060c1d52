package entity

import "time"

// Session is one uploaded sheet staged for grading.
type Session struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	Format           string    `json:"format"`
	Header           []string  `json:"header"`
	Rows             []Row     `json:"rows"`
	Cursor           int       `json:"cursor"` // index of the next row to grade
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Total is the number of body rows.
func (s *Session) Total() int { return len(s.Rows) }
