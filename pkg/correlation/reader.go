package correlation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	colRank = iota
	colKeyByte
	colCorrelation
	colData
	minColumns
)

// DefaultPattern is the file name the upstream CPA run writes per byte index
const DefaultPattern = "byte_%d_correlations.csv"

// FileName returns the table file name for a byte index
func FileName(pattern string, byteIdx int) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return fmt.Sprintf(pattern, byteIdx)
}

// TableReader reads correlation tables, decoding at most Top rows per file
type TableReader struct {
	Top int
}

func NewTableReader(top int) *TableReader {
	return &TableReader{Top: top}
}

// ReadFile opens and parses one table file. A missing file is reported with
// an error that matches fs.ErrNotExist. As with Parse, a row error still
// returns the rows decoded before it.
func (tr *TableReader) ReadFile(byteIdx int, path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open correlation file %s: %w", path, err)
	}
	defer file.Close()

	table, err := tr.Parse(byteIdx, file)
	if table != nil {
		table.Path = path
	}
	if err != nil {
		return table, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Parse decodes a table from r. The header record is skipped without
// validation; rows keep their file order, which is the ranking order.
//
// When a row fails to decode, Parse returns the table holding the rows
// before it together with the error, so those candidates can still be
// plotted. The table is nil only when the header itself is unreadable.
func (tr *TableReader) Parse(byteIdx int, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	table := &Table{
		ByteIndex: byteIdx,
		Header:    header,
	}

	for len(table.Candidates) < tr.Top {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table, fmt.Errorf("failed to read row %d: %w", len(table.Candidates)+1, err)
		}

		line, _ := reader.FieldPos(0)
		candidate, err := parseCandidate(record, len(table.Candidates)+1)
		if err != nil {
			return table, fmt.Errorf("line %d: %w", line, err)
		}
		table.Candidates = append(table.Candidates, candidate)
	}

	return table, nil
}

func parseCandidate(record []string, rank int) (Candidate, error) {
	if len(record) < minColumns {
		return Candidate{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRow, minColumns, len(record))
	}

	keyByte, err := strconv.Atoi(strings.TrimSpace(record[colKeyByte]))
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: invalid key byte %q", ErrMalformedRow, record[colKeyByte])
	}

	corr, err := parseFloat(record[colCorrelation])
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: invalid correlation %q", ErrMalformedRow, record[colCorrelation])
	}

	samples, err := ParseSamples(record[colData])
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	if len(samples) == 0 {
		return Candidate{}, fmt.Errorf("key byte %d: %w", keyByte, ErrNoSamples)
	}

	return Candidate{
		Rank:        rank,
		Label:       strings.TrimSpace(record[colRank]),
		KeyByte:     keyByte,
		Correlation: corr,
		Samples:     samples,
	}, nil
}
