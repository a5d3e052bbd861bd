package correlation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	pointSeparator = "|"
	pairSeparator  = ":"
)

var (
	// ErrMalformedRow is returned for rows that are too short or carry unparsable fields
	ErrMalformedRow = errors.New("malformed correlation row")

	// ErrMissingHeader is returned for a table file without a header record
	ErrMissingHeader = errors.New("missing header record")

	// ErrNoSamples is returned when a selected candidate has nothing to plot
	ErrNoSamples = errors.New("candidate has no samples")
)

// ParseSamples decodes a Data field of the form "h:p|h:p|...".
// Entries without a colon are ignored, so empty fields and trailing
// separators yield no samples rather than an error.
func ParseSamples(field string) ([]Sample, error) {
	if strings.TrimSpace(field) == "" {
		return nil, nil
	}

	points := strings.Split(field, pointSeparator)
	samples := make([]Sample, 0, len(points))

	for i, point := range points {
		if !strings.Contains(point, pairSeparator) {
			continue
		}

		parts := strings.Split(point, pairSeparator)
		if len(parts) != 2 {
			return nil, fmt.Errorf("point %d %q: expected one %q, found %d", i, point, pairSeparator, len(parts)-1)
		}

		h, err := parseFloat(parts[0])
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid hamming distance: %w", i, err)
		}
		p, err := parseFloat(parts[1])
		if err != nil {
			return nil, fmt.Errorf("point %d: invalid power value: %w", i, err)
		}

		samples = append(samples, Sample{HammingDistance: h, Power: p})
	}

	return samples, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
