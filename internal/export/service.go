package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/entity"
)

const (
	sheetName    = "Graded"
	csvDelimiter = ';'
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Service renders graded sessions into output artifacts in a directory and
// serves them back by name.
type Service struct {
	dir    string
	logger *slog.Logger
}

func NewService(dir string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.NewAppError("EXPORT_DIR", "create result directory", errors.Join(common.ErrStorage, err))
	}
	return &Service{dir: dir, logger: logger}, nil
}

// ResultName is the artifact name for a session: graded_<id>.<ext>.
func ResultName(sessionID, format string) string {
	return constants.ResultPrefix + sessionID + "." + format
}

// Write renders sess in the format it was uploaded in and returns the
// artifact's file name. CSV output uses ';' and a UTF-8 byte order mark.
func (s *Service) Write(ctx context.Context, sess *entity.Session) (string, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		data []byte
		err  error
	)
	format := constants.NormalizeExt(sess.Format)
	switch format {
	case constants.FormatCSV:
		data, err = EncodeCSV(sess.Header, sess.Rows)
	case constants.FormatXLSX:
		data, err = EncodeXLSX(sess.Header, sess.Rows)
	default:
		return "", common.NewAppError("EXPORT_FORMAT", "unsupported result format: "+sess.Format, common.ErrInvalidInput)
	}
	if err != nil {
		return "", common.NewAppError("EXPORT_ENCODE", "encode result file", err)
	}

	name := ResultName(sess.ID, format)
	if err := s.writeFile(name, data); err != nil {
		return "", err
	}
	s.logger.Info("export.write.ok",
		"session_id", sess.ID,
		"file", name,
		"rows", len(sess.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return name, nil
}

func (s *Service) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return common.NewAppError("EXPORT_WRITE", "write result file", errors.Join(common.ErrStorage, err))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return common.NewAppError("EXPORT_WRITE", "write result file", errors.Join(common.ErrStorage, err))
	}
	if err := tmp.Close(); err != nil {
		return common.NewAppError("EXPORT_WRITE", "write result file", errors.Join(common.ErrStorage, err))
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return common.NewAppError("EXPORT_WRITE", "write result file", errors.Join(common.ErrStorage, err))
	}
	return nil
}

// Path resolves a result name to its file. Only bare names carrying the
// result prefix are accepted.
func (s *Service) Path(name string) (string, error) {
	if !strings.HasPrefix(name, constants.ResultPrefix) ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", common.NewAppError("RESULT_NAME", "invalid result file name", common.ErrInvalidInput)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", common.NewAppError("RESULT_NOT_FOUND", "result file not found: "+name, common.ErrNotFound)
	}
	return path, nil
}

// Read returns the bytes of a result artifact.
func (s *Service) Read(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError("RESULT_READ", "read result file", errors.Join(common.ErrStorage, err))
	}
	return data, nil
}

// EncodeCSV writes header and rows as ';'-separated UTF-8 with a BOM.
func EncodeCSV(header []string, rows []entity.Row) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	w.Comma = csvDelimiter
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r.Cells()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeXLSX writes header and rows into a single-sheet workbook. Error
// grades are rendered in red.
func EncodeXLSX(header []string, rows []entity.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	errorStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "9C0006"}})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, err
	}
	if len(header) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(sheetName, "A1", last, headerStyle)
	}

	for i, r := range rows {
		cells := r.Cells()
		start, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, start, &cells); err != nil {
			return nil, err
		}
		if r.Grade.IsError() {
			cell, _ := excelize.CoordinatesToCellName(constants.GradeColumn+1, i+2)
			_ = f.SetCellStyle(sheetName, cell, cell, errorStyle)
		}
	}

	_ = f.SetColWidth(sheetName, "C", "C", 10) // question
	_ = f.SetColWidth(sheetName, "F", "F", 28) // grade
	_ = f.SetColWidth(sheetName, "G", "G", 60) // answer

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
