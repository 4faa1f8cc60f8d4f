package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/pkg/logger"
)

// DefaultEncodings is the candidate order for exports without a BOM.
var DefaultEncodings = []string{"utf-8", "windows-1254", "iso-8859-9", "windows-1252"}

var ErrEmptyReport = fmt.Errorf("%w: empty report", core.ErrData)

type Row map[string]string

type Options struct {
	// KeyColumn identifies a row; rows where it is empty are skipped.
	KeyColumn string
	Encodings []string
	// Delimiter 0 means: tab when the header line has one, comma otherwise.
	Delimiter rune
	Logger    logger.Logger
}

type Result struct {
	Header    []string
	Rows      []Row
	Skipped   int
	Encoding  string
	Delimiter rune
}

func ParseReader(r io.Reader, opts Options) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("report read error: %w", err)
	}
	return Parse(data, opts)
}

// Parse декодирует выгрузку маркетплейса в строки.
// Ragged and keyless rows are skipped and counted; only an empty input or a missing header fail.
func Parse(data []byte, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	text, encName, err := decode(data, opts.Encodings)
	if err != nil {
		return nil, err
	}
	text = strings.TrimPrefix(text, "\uFEFF")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyReport
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = detectDelimiter(text)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyReport
	}
	if err != nil {
		return nil, fmt.Errorf("%w: report header: %v", core.ErrData, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if isBlank(header) {
		return nil, ErrEmptyReport
	}

	result := &Result{Header: header, Encoding: encName, Delimiter: delim}
	if opts.KeyColumn != "" && indexOf(header, opts.KeyColumn) < 0 {
		log.Warn("report has no key column %q, every row will be skipped", opts.KeyColumn)
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			log.Warn("report line %d unreadable, skipped: %v", line, err)
			result.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: report line %d: %v", core.ErrData, line, err)
		}
		if len(record) != len(header) {
			log.Warn("report line %d has %d columns, header has %d, skipped", line, len(record), len(header))
			result.Skipped++
			continue
		}
		row := make(Row, len(header))
		for i, col := range header {
			row[col] = record[i]
		}
		if opts.KeyColumn != "" && strings.TrimSpace(row[opts.KeyColumn]) == "" {
			log.Warn("report line %d has empty %s, skipped", line, opts.KeyColumn)
			result.Skipped++
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

// decode honours a BOM, keeps valid UTF-8, and otherwise takes the first
// candidate that decodes without replacement characters.
func decode(data []byte, candidates []string) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), "utf-8", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data, "utf-16le")
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data, "utf-16be")
	}
	if len(candidates) == 0 {
		candidates = DefaultEncodings
	}
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	var fallback encoding.Encoding
	var fallbackName string
	for _, name := range candidates {
		if strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
			continue
		}
		enc, err := htmlindex.Get(name)
		if err != nil {
			return "", "", fmt.Errorf("unknown report encoding %q: %w", name, err)
		}
		if fallback == nil {
			fallback, fallbackName = enc, name
		}
		decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
		if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return string(decoded), name, nil
	}
	if fallback == nil {
		return "", "", fmt.Errorf("%w: report is not valid utf-8", core.ErrData)
	}
	return decodeWith(fallback, data, fallbackName)
}

func decodeWith(enc encoding.Encoding, data []byte, name string) (string, string, error) {
	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", "", fmt.Errorf("%w: decode %s: %v", core.ErrData, name, err)
	}
	return string(decoded), name, nil
}

func detectDelimiter(text string) rune {
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	if strings.ContainsRune(first, '\t') {
		return '\t'
	}
	return ','
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}

func indexOf(slice []string, str string) int {
	for i, s := range slice {
		if s == str {
			return i
		}
	}
	return -1
}
