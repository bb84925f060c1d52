package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/joseph-ayodele/exam-grader/constants"
	"github.com/joseph-ayodele/exam-grader/internal/common"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Sheet is an uploaded table split into its header and body rows.
type Sheet struct {
	Format    string
	Encoding  string // CSV only
	Delimiter rune   // CSV only
	Header    []string
	Body      [][]string
}

type decoder struct {
	name   string
	decode func([]byte) (string, bool)
}

// Tried in order; the first decoding that yields a wide enough header wins.
var (
	csvDecoders = []decoder{
		{"utf-8", decodeUTF8},
		{"cp1251", decodeCharmap(charmap.Windows1251)},
		{"latin1", decodeCharmap(charmap.ISO8859_1)},
	}
	csvDelimiters = []rune{',', ';', '\t'}
)

func decodeUTF8(data []byte) (string, bool) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

func decodeCharmap(cm *charmap.Charmap) func([]byte) (string, bool) {
	return func(data []byte) (string, bool) {
		out, err := cm.NewDecoder().Bytes(data)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			return "", false
		}
		return string(out), true
	}
}

// ReadUpload validates an uploaded file and parses it into a Sheet.
func ReadUpload(filename string, data []byte) (*Sheet, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return nil, invalidUpload("no file selected")
	}
	ext := constants.NormalizeExt(filepath.Ext(name))
	if !AllowedExt(ext) {
		return nil, invalidUpload("unsupported file format; only CSV and XLSX are allowed")
	}
	if len(data) == 0 {
		return nil, invalidUpload("file is empty")
	}

	var (
		sheet *Sheet
		err   error
	)
	switch ext {
	case constants.FormatXLSX:
		sheet, err = readXLSX(data)
	default:
		sheet, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}
	if len(sheet.Body) == 0 {
		return nil, invalidUpload("file has no data rows")
	}
	return sheet, nil
}

func readCSV(data []byte) (*Sheet, error) {
	for _, dec := range csvDecoders {
		text, ok := dec.decode(data)
		if !ok {
			continue
		}
		for _, delim := range csvDelimiters {
			records, err := parseCSV(text, delim)
			if err != nil || len(records) == 0 || len(records[0]) < constants.MinColumns {
				continue
			}
			return &Sheet{
				Format:    constants.FormatCSV,
				Encoding:  dec.name,
				Delimiter: delim,
				Header:    records[0],
				Body:      records[1:],
			}, nil
		}
	}
	return nil, invalidUpload(fmt.Sprintf(
		"could not read CSV file: expected at least %d columns (A-G) separated by ',', ';' or tab", constants.MinColumns))
}

// parseCSV reads every record of text. Blank lines are kept as empty
// records so row positions match the source file.
func parseCSV(text string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		records [][]string
		next    = 1 // line a record would start on with no blank line before it
		seen    int64
		lines   int
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		start, _ := r.FieldPos(0)
		for ; next < start; next++ {
			records = append(records, []string{})
		}
		records = append(records, rec)

		off := r.InputOffset()
		lines += strings.Count(text[seen:off], "\n")
		seen = off
		next = lines + 1
	}
	for i := strings.Count(text[seen:], "\n"); i > 0; i-- {
		records = append(records, []string{})
	}
	return records, nil
}

func readXLSX(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, invalidUpload("could not read XLSX file")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, invalidUpload("XLSX file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, invalidUpload("could not read XLSX file")
	}
	if len(rows) == 0 {
		return nil, invalidUpload("file has no data rows")
	}
	if len(rows[0]) < constants.MinColumns {
		return nil, invalidUpload(fmt.Sprintf(
			"file must contain at least %d columns (A-G), found %d", constants.MinColumns, len(rows[0])))
	}
	return &Sheet{Format: constants.FormatXLSX, Header: rows[0], Body: rows[1:]}, nil
}

func invalidUpload(message string) error {
	return common.NewAppError("INVALID_UPLOAD", message, common.ErrInvalidInput)
}
