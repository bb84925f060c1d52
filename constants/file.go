package constants

import "strings"

// File formats accepted for upload.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// AllowedExtensions holds the upload extensions the ingest reader understands.
var AllowedExtensions = map[string]struct{}{
	FormatCSV:  {},
	FormatXLSX: {},
}

// ResultPrefix is prepended to every output artifact name.
const ResultPrefix = "graded_"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
