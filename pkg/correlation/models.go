package correlation

import "fmt"

// Sample is one trace point: the modelled Hamming distance for a key guess
// and the measured power value at the selected sample point.
type Sample struct {
	HammingDistance float64 `json:"hamming_distance" yaml:"hamming_distance"`
	Power           float64 `json:"power" yaml:"power"`
}

// Candidate is one ranked key-byte guess read from a correlation table
type Candidate struct {
	// Rank is the 1-based row position; rows arrive best-first
	Rank        int      `json:"rank"`
	// Label is the upstream Rank column, carried verbatim
	Label       string   `json:"label"`
	// KeyByte is the guessed value; upstream writes 0..255 but any int is kept
	KeyByte     int      `json:"key_byte"`
	Correlation float64  `json:"correlation"`
	Samples     []Sample `json:"-"`
}

// NumPoints returns the number of samples plotted for this candidate
func (c Candidate) NumPoints() int {
	return len(c.Samples)
}

// XY splits the samples into Hamming-distance and power columns
func (c Candidate) XY() ([]float64, []float64) {
	xs := make([]float64, len(c.Samples))
	ys := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		xs[i] = s.HammingDistance
		ys[i] = s.Power
	}
	return xs, ys
}

func (c Candidate) String() string {
	return fmt.Sprintf("rank %d: key %d r=%.6f (%d points)", c.Rank, c.KeyByte, c.Correlation, len(c.Samples))
}

// Table is the parsed content of one byte_<i>_correlations.csv file
type Table struct {
	ByteIndex  int
	Path       string
	Header     []string
	Candidates []Candidate // at most the requested number of rows
}

// Top returns the best-ranked candidate, or false if the table has no rows
func (t *Table) Top() (Candidate, bool) {
	if t == nil || len(t.Candidates) == 0 {
		return Candidate{}, false
	}
	return t.Candidates[0], true
}

// InByteRange reports whether the key byte is a valid byte value
func (c Candidate) InByteRange() bool {
	return c.KeyByte >= 0 && c.KeyByte <= 255
}
