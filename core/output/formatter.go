// Package output renders enriched call detail records.
// Every artifact holds exactly one record.
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"cdr-cost/core/types"
	"cdr-cost/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatJSON is the record as one JSON object
	FormatJSON Format = "json"

	// FormatCSV is a header row plus one data row
	FormatCSV Format = "csv"
)

// ParseFormat maps a configured name to a format. "CSV" in any case
// selects CSV; every other value, including empty, selects JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatCSV)) {
		return FormatCSV
	}
	return FormatJSON
}

// Artifact is a rendered record ready to be stored
type Artifact struct {
	Format      Format
	ContentType string
	Extension   string
	Body        []byte
}

// Key returns the output key for an artifact rendered from sourceKey.
// JSON keeps the source key; CSV appends its extension.
func (a *Artifact) Key(sourceKey string) string {
	if a.Format == FormatJSON {
		return sourceKey
	}
	return sourceKey + a.Extension
}

// Len returns the exact body length in bytes
func (a *Artifact) Len() int64 {
	return int64(len(a.Body))
}

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// ContentType returns the MIME type of rendered output
	ContentType() string

	// Extension returns the file extension including the dot
	Extension() string

	// Render writes the record to w
	Render(w io.Writer, record *types.Record) error
}

// JSONFormatter renders a record as compact JSON in field order
type JSONFormatter struct{}

// Format implements Formatter
func (JSONFormatter) Format() Format { return FormatJSON }

// ContentType implements Formatter
func (JSONFormatter) ContentType() string { return "application/json" }

// Extension implements Formatter
func (JSONFormatter) Extension() string { return ".json" }

// Render implements Formatter
func (JSONFormatter) Render(w io.Writer, record *types.Record) error {
	data, err := record.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// CSVFormatter renders a record as a header row and one data row
type CSVFormatter struct{}

// Format implements Formatter
func (CSVFormatter) Format() Format { return FormatCSV }

// ContentType implements Formatter
func (CSVFormatter) ContentType() string { return "text/csv" }

// Extension implements Formatter
func (CSVFormatter) Extension() string { return ".csv" }

// Render implements Formatter
func (CSVFormatter) Render(w io.Writer, record *types.Record) error {
	keys := record.Keys()
	row := make([]string, len(keys))
	for i, k := range keys {
		row[i] = record.Text(k)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(keys); err != nil {
		return err
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ForFormat returns the formatter for f
func ForFormat(f Format) (Formatter, error) {
	switch f {
	case FormatJSON:
		return JSONFormatter{}, nil
	case FormatCSV:
		return CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", f)
	}
}

// Render formats one record into an artifact
func Render(record *types.Record, f Format) (*Artifact, error) {
	formatter, err := ForFormat(f)
	if err != nil {
		return nil, errors.Format("select formatter", err)
	}

	var buf bytes.Buffer
	if err := formatter.Render(&buf, record); err != nil {
		return nil, errors.Format(fmt.Sprintf("render %s", f), err)
	}
	return &Artifact{
		Format:      f,
		ContentType: formatter.ContentType(),
		Extension:   formatter.Extension(),
		Body:        buf.Bytes(),
	}, nil
}
