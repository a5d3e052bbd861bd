// Package visualize turns per-byte correlation tables into scatter plots,
// one image per (byte, rank) pair, and reports what was produced.
package visualize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/cpa-plot/pkg/correlation"
	"github.com/gilchrisn/cpa-plot/pkg/render"
)

// Options contains everything a run needs
type Options struct {
	InputDir     string
	InputPattern string
	NumBytes     int
	TopN         int
	OutputDir    string
	Manifest     string // file name inside OutputDir; empty disables it
	Style        render.Style
}

// DefaultOptions mirrors the upstream CPA run: 16 bytes, top 3 candidates
func DefaultOptions() Options {
	return Options{
		InputDir:     ".",
		InputPattern: correlation.DefaultPattern,
		NumBytes:     16,
		TopN:         3,
		OutputDir:    "plots",
		Style:        render.DefaultStyle(),
	}
}

// Pipeline reads every byte table and renders its top candidates
type Pipeline struct {
	opts     Options
	reader   *correlation.TableReader
	renderer *render.ScatterRenderer
	writer   render.PlotWriter
	logger   zerolog.Logger
}

// NewPipeline creates a pipeline writing image files to opts.OutputDir
func NewPipeline(opts Options, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		opts:     opts,
		reader:   correlation.NewTableReader(opts.TopN),
		renderer: render.NewScatterRenderer(opts.Style),
		writer:   render.NewFileWriter(opts.Style),
		logger:   logger,
	}
}

// WithWriter replaces the plot writer
func (p *Pipeline) WithWriter(w render.PlotWriter) *Pipeline {
	p.writer = w
	return p
}

func (p *Pipeline) tablePath(byteIdx int) string {
	return filepath.Join(p.opts.InputDir, correlation.FileName(p.opts.InputPattern, byteIdx))
}

// ReadTables loads every byte table without rendering. Unreadable tables are
// logged and recorded as failures; a table whose later rows are malformed is
// still returned with the rows before the bad one.
func (p *Pipeline) ReadTables(ctx context.Context) (*Result, []*correlation.Table, error) {
	result := newResult(p.opts)
	var tables []*correlation.Table

	for b := 0; b < p.opts.NumBytes; b++ {
		if err := ctx.Err(); err != nil {
			return result, tables, err
		}

		table, err := p.readTable(b, result)
		if err != nil {
			p.fail(b, p.tablePath(b), err, result)
		}
		if table != nil && (err == nil || len(table.Candidates) > 0) {
			tables = append(tables, table)
		}
	}

	result.finish()
	return result, tables, nil
}

// readTable returns the rows decoded for byte b, nil when the file could not
// be read at all, along with the error that stopped decoding.
func (p *Pipeline) readTable(b int, result *Result) (*correlation.Table, error) {
	table, err := p.reader.ReadFile(b, p.tablePath(b))
	if table == nil {
		return nil, err
	}

	if top, ok := table.Top(); ok {
		result.TopKeys[b] = top.KeyByte
	}
	for _, c := range table.Candidates {
		if !c.InByteRange() {
			p.logger.Warn().Int("byte", b).Int("rank", c.Rank).Int("key_byte", c.KeyByte).Msg("Key value outside byte range")
		}
	}
	p.logger.Debug().Int("byte", b).Int("candidates", len(table.Candidates)).Msg("Loaded correlation table")
	return table, err
}

func (p *Pipeline) fail(b int, path string, err error, result *Result) {
	p.logger.Error().Err(err).Int("byte", b).Str("file", path).Msg("Error processing correlation file")
	result.addFailure(b, path, err)
}

// Run renders the top candidates of every byte. Ranks are plotted in order
// until the first missing, malformed or unrenderable row; that ends the byte
// and records it as failed, keeping plots already written. Only failing to
// create the output directory (or cancellation) aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(p.opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := newResult(p.opts)
	p.logger.Info().
		Str("input_dir", p.opts.InputDir).
		Str("output_dir", p.opts.OutputDir).
		Int("bytes", p.opts.NumBytes).
		Int("top_n", p.opts.TopN).
		Msg("Rendering correlation plots")

	for b := 0; b < p.opts.NumBytes; b++ {
		if err := ctx.Err(); err != nil {
			result.finish()
			return result, err
		}

		table, readErr := p.readTable(b, result)
		if table != nil {
			if err := p.renderTable(ctx, table, result); err != nil {
				if ctx.Err() != nil {
					result.finish()
					return result, ctx.Err()
				}
				p.fail(b, table.Path, err, result)
				continue
			}
		}
		if readErr != nil {
			p.fail(b, p.tablePath(b), readErr, result)
		}
	}

	result.finish()

	if p.opts.Manifest != "" {
		path := filepath.Join(p.opts.OutputDir, p.opts.Manifest)
		if err := WriteManifest(result, path); err != nil {
			p.logger.Error().Err(err).Str("file", path).Msg("Failed to write manifest")
		} else {
			p.logger.Info().Str("file", path).Msg("Wrote manifest")
		}
	}

	p.logger.Info().
		Int("plots", len(result.Plots)).
		Int("failed_bytes", len(result.Failures)).
		Dur("runtime", result.Runtime).
		Msg("Rendering finished")

	return result, nil
}

func (p *Pipeline) renderTable(ctx context.Context, table *correlation.Table, result *Result) error {
	for _, c := range table.Candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		plt, err := p.renderer.Build(table.ByteIndex, c)
		if err != nil {
			return err
		}

		path := filepath.Join(p.opts.OutputDir, render.PlotName(table.ByteIndex, c.Rank, p.opts.Style.Format))
		if err := p.writer.Write(plt, path); err != nil {
			return fmt.Errorf("rank %d: %w", c.Rank, err)
		}

		result.addPlot(table.ByteIndex, c, path)
		p.logger.Info().Int("byte", table.ByteIndex).Int("rank", c.Rank).Msgf("Created plot %s", path)
	}
	return nil
}
