package visualize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gilchrisn/cpa-plot/pkg/correlation"
)

// PlotInfo describes one generated image
type PlotInfo struct {
	Byte        int     `json:"byte" yaml:"byte"`
	Rank        int     `json:"rank" yaml:"rank"`
	KeyByte     int     `json:"key_byte" yaml:"key_byte"`
	Correlation float64 `json:"correlation" yaml:"correlation"`
	Points      int     `json:"points" yaml:"points"`
	Path        string  `json:"path" yaml:"path"`
}

// Failure records a byte index that was skipped
type Failure struct {
	Byte  int    `json:"byte" yaml:"byte"`
	File  string `json:"file" yaml:"file"`
	Error string `json:"error" yaml:"error"`
}

// Result summarises a run
type Result struct {
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Runtime   time.Duration `json:"runtime" yaml:"runtime"`
	InputDir  string        `json:"input_dir" yaml:"input_dir"`
	OutputDir string        `json:"output_dir" yaml:"output_dir"`
	Plots     []PlotInfo    `json:"plots" yaml:"plots"`
	Failures  []Failure     `json:"failures,omitempty" yaml:"failures,omitempty"`

	// TopKeys[b] is the rank-1 key byte for byte b, -1 if b was not read
	TopKeys []int `json:"top_keys" yaml:"top_keys"`
}

func newResult(opts Options) *Result {
	keys := make([]int, opts.NumBytes)
	for i := range keys {
		keys[i] = -1
	}
	return &Result{
		StartedAt: time.Now(),
		InputDir:  opts.InputDir,
		OutputDir: opts.OutputDir,
		TopKeys:   keys,
	}
}

func (r *Result) addPlot(byteIdx int, c correlation.Candidate, path string) {
	r.Plots = append(r.Plots, PlotInfo{
		Byte:        byteIdx,
		Rank:        c.Rank,
		KeyByte:     c.KeyByte,
		Correlation: c.Correlation,
		Points:      c.NumPoints(),
		Path:        path,
	})
}

func (r *Result) addFailure(byteIdx int, path string, err error) {
	r.Failures = append(r.Failures, Failure{Byte: byteIdx, File: path, Error: err.Error()})
}

func (r *Result) finish() {
	r.Runtime = time.Since(r.StartedAt)
}

// Failed reports whether byteIdx was skipped
func (r *Result) Failed(byteIdx int) bool {
	for _, f := range r.Failures {
		if f.Byte == byteIdx {
			return true
		}
	}
	return false
}

// TopCandidates returns the best-ranked key byte per byte index
func (r *Result) TopCandidates() []int {
	out := make([]int, len(r.TopKeys))
	copy(out, r.TopKeys)
	return out
}

// FormatKey renders key bytes the way the CPA run reports its result.
// Unknown bytes (negative values) are shown as "?".
func FormatKey(key []int) string {
	parts := make([]string, len(key))
	for i, k := range key {
		if k < 0 {
			parts[i] = "?"
			continue
		}
		parts[i] = strconv.Itoa(k)
	}
	return fmt.Sprintf("Key is %s", strings.Join(parts, ", "))
}
