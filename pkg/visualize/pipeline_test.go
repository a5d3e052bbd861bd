package visualize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/gilchrisn/cpa-plot/pkg/correlation"
	"github.com/gilchrisn/cpa-plot/pkg/render"
)

// recordingWriter captures plot paths instead of encoding images
type recordingWriter struct {
	paths  []string
	titles []string
	failOn string
}

func (rw *recordingWriter) Write(p *plot.Plot, path string) error {
	if rw.failOn != "" && filepath.Base(path) == rw.failOn {
		return errors.New("disk full")
	}
	rw.paths = append(rw.paths, path)
	rw.titles = append(rw.titles, p.Title.Text)
	return nil
}

// setupTables writes byte 0 (three rows), byte 2 (malformed) and byte 3
// (one row); byte 1 is left missing.
func setupTables(t *testing.T) Options {
	t.Helper()
	inputDir := t.TempDir()

	files := map[int]string{
		0: "Rank,KeyByte,Correlation,Data\n" +
			"1,43,0.91,1:0.1|2:0.2|3:0.3\n" +
			"2,17,0.45,1:0.3|2:0.2\n" +
			"3,200,0.44,4:0.4\n" +
			"4,5,0.1,1:1\n",
		2: "Rank,KeyByte,Correlation,Data\n1,not-a-number,0.5,1:1\n",
		3: "Rank,KeyByte,Correlation,Data\n1,9,0.77,0:0.5|8:0.9\n",
	}
	for b, content := range files {
		path := filepath.Join(inputDir, correlation.FileName(correlation.DefaultPattern, b))
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}
	}

	opts := DefaultOptions()
	opts.InputDir = inputDir
	opts.OutputDir = filepath.Join(t.TempDir(), "plots")
	opts.NumBytes = 4
	opts.Style = render.Style{Width: 2 * vg.Inch, Height: 1 * vg.Inch, DPI: 72, Format: "png"}
	return opts
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.NumBytes != 16 || opts.TopN != 3 {
		t.Errorf("Expected 16 bytes / top 3, got %d / %d", opts.NumBytes, opts.TopN)
	}
	if opts.OutputDir != "plots" {
		t.Errorf("Expected plots directory, got %s", opts.OutputDir)
	}
}

func TestPipelineRun(t *testing.T) {
	opts := setupTables(t)
	writer := &recordingWriter{}

	result, err := NewPipeline(opts, zerolog.Nop()).WithWriter(writer).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	t.Run("OutputDirectoryCreated", func(t *testing.T) {
		if info, err := os.Stat(opts.OutputDir); err != nil || !info.IsDir() {
			t.Errorf("Expected output directory %s to exist", opts.OutputDir)
		}
	})

	t.Run("PlotsPerByteAndRank", func(t *testing.T) {
		want := []string{
			"byte_0_rank_1.png",
			"byte_0_rank_2.png",
			"byte_0_rank_3.png",
			"byte_3_rank_1.png",
		}
		if len(writer.paths) != len(want) {
			t.Fatalf("Expected %d plots, got %d: %v", len(want), len(writer.paths), writer.paths)
		}
		for i, name := range want {
			if writer.paths[i] != filepath.Join(opts.OutputDir, name) {
				t.Errorf("Plot %d: expected %s, got %s", i, name, writer.paths[i])
			}
		}
		if writer.titles[1] != "Byte 0, Key Value 17, Rank 2\nPearson Correlation: 0.450000" {
			t.Errorf("Unexpected title %q", writer.titles[1])
		}
		if len(result.Plots) != len(want) {
			t.Errorf("Expected %d plot records, got %d", len(want), len(result.Plots))
		}
		if result.Plots[0].Points != 3 || result.Plots[0].KeyByte != 43 {
			t.Errorf("Unexpected first plot record %+v", result.Plots[0])
		}
	})

	t.Run("MissingAndMalformedSkipped", func(t *testing.T) {
		if len(result.Failures) != 2 {
			t.Fatalf("Expected 2 failures, got %d: %+v", len(result.Failures), result.Failures)
		}
		if !result.Failed(1) || !result.Failed(2) {
			t.Errorf("Expected bytes 1 and 2 to fail, got %+v", result.Failures)
		}
		if result.Failed(0) || result.Failed(3) {
			t.Error("Bytes 0 and 3 should not fail")
		}
	})

	t.Run("TopCandidates", func(t *testing.T) {
		got := result.TopCandidates()
		want := []int{43, -1, -1, 9}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Byte %d: expected %d, got %d", i, want[i], got[i])
			}
		}
	})
}

func TestPipelineWriteFailureEndsByte(t *testing.T) {
	opts := setupTables(t)
	writer := &recordingWriter{failOn: "byte_0_rank_2.png"}

	result, err := NewPipeline(opts, zerolog.Nop()).WithWriter(writer).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// byte 0 keeps rank 1 only, byte 3 still renders
	if len(writer.paths) != 2 {
		t.Fatalf("Expected 2 plots, got %v", writer.paths)
	}
	if filepath.Base(writer.paths[1]) != "byte_3_rank_1.png" {
		t.Errorf("Expected byte 3 to render after byte 0 failed, got %s", writer.paths[1])
	}
	if !result.Failed(0) {
		t.Error("Expected byte 0 to be recorded as failed")
	}
}

// writeByteTable overwrites the table for one byte index
func writeByteTable(t *testing.T, opts Options, b int, content string) {
	t.Helper()
	path := filepath.Join(opts.InputDir, correlation.FileName(opts.InputPattern, b))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
}

func TestPipelineMalformedRowKeepsEarlierRanks(t *testing.T) {
	rows := map[string]string{
		"BadSamples": "2,17,0.45,1:0.1:9\n",
		"BadKeyByte": "2,x,0.45,1:0.1\n",
		"NoSamples":  "2,17,0.45,\n",
	}

	for name, row := range rows {
		t.Run(name, func(t *testing.T) {
			opts := setupTables(t)
			writeByteTable(t, opts, 0, "Rank,KeyByte,Correlation,Data\n1,43,0.91,1:0.1|2:0.2\n"+row+"3,200,0.44,4:0.4\n")
			writer := &recordingWriter{}

			result, err := NewPipeline(opts, zerolog.Nop()).WithWriter(writer).Run(context.Background())
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			if len(writer.paths) != 2 || filepath.Base(writer.paths[0]) != "byte_0_rank_1.png" {
				t.Fatalf("Expected byte_0_rank_1.png then byte 3, got %v", writer.paths)
			}
			if filepath.Base(writer.paths[1]) != "byte_3_rank_1.png" {
				t.Errorf("Expected byte 3 to render next, got %s", writer.paths[1])
			}
			if !result.Failed(0) {
				t.Error("Expected byte 0 to be recorded as failed")
			}
			if result.TopCandidates()[0] != 43 {
				t.Errorf("Expected rank-1 key 43 for byte 0, got %d", result.TopCandidates()[0])
			}
		})
	}
}

func TestPipelineKeyOutsideByteRangeWarns(t *testing.T) {
	opts := setupTables(t)
	writeByteTable(t, opts, 3, "Rank,KeyByte,Correlation,Data\n1,300,0.77,0:0.5|8:0.9\n")

	var logs bytes.Buffer
	writer := &recordingWriter{}
	result, err := NewPipeline(opts, zerolog.New(&logs)).WithWriter(writer).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Failed(3) {
		t.Error("Byte 3 should still be plotted")
	}
	if filepath.Base(writer.paths[len(writer.paths)-1]) != "byte_3_rank_1.png" {
		t.Errorf("Expected byte_3_rank_1.png, got %v", writer.paths)
	}
	if !strings.Contains(logs.String(), "Key value outside byte range") {
		t.Error("Expected a warning for key value 300")
	}
}

func TestPipelineTopN(t *testing.T) {
	opts := setupTables(t)
	opts.TopN = 1
	writer := &recordingWriter{}

	if _, err := NewPipeline(opts, zerolog.Nop()).WithWriter(writer).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(writer.paths) != 2 {
		t.Errorf("Expected one plot per readable byte, got %v", writer.paths)
	}
}

func TestPipelineCancelled(t *testing.T) {
	opts := setupTables(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := &recordingWriter{}
	_, err := NewPipeline(opts, zerolog.Nop()).WithWriter(writer).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(writer.paths) != 0 {
		t.Errorf("No plots expected after cancellation, got %v", writer.paths)
	}
}

func TestPipelineOutputDirFailure(t *testing.T) {
	opts := setupTables(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatalf("failed to write blocker: %v", err)
	}
	opts.OutputDir = filepath.Join(blocker, "plots")

	if _, err := NewPipeline(opts, zerolog.Nop()).Run(context.Background()); err == nil {
		t.Error("Expected error when the output directory cannot be created")
	}
}

func TestPipelineRendersImages(t *testing.T) {
	opts := setupTables(t)
	opts.Manifest = "summary.json"

	result, err := NewPipeline(opts, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, p := range result.Plots {
		info, err := os.Stat(p.Path)
		if err != nil {
			t.Errorf("Expected %s to exist: %v", p.Path, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("Expected %s to be non-empty", p.Path)
		}
	}

	manifest, err := ReadManifest(filepath.Join(opts.OutputDir, "summary.json"))
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if len(manifest.Plots) != len(result.Plots) || len(manifest.Failures) != 2 {
		t.Errorf("Manifest mismatch: %d plots, %d failures", len(manifest.Plots), len(manifest.Failures))
	}
}

func TestReadTables(t *testing.T) {
	opts := setupTables(t)

	result, tables, err := NewPipeline(opts, zerolog.Nop()).ReadTables(context.Background())
	if err != nil {
		t.Fatalf("ReadTables failed: %v", err)
	}
	if len(tables) != 2 {
		t.Errorf("Expected 2 readable tables, got %d", len(tables))
	}
	if got := FormatKey(result.TopCandidates()); got != "Key is 43, ?, ?, 9" {
		t.Errorf("Unexpected key line %q", got)
	}
	if _, err := os.Stat(opts.OutputDir); !os.IsNotExist(err) {
		t.Error("ReadTables should not create the output directory")
	}
}

func TestWriteManifestYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.yaml")
	result := newResult(Options{NumBytes: 2})
	result.addPlot(0, correlation.Candidate{Rank: 1, KeyByte: 7, Correlation: 0.5, Samples: make([]correlation.Sample, 4)}, "plots/byte_0_rank_1.png")
	result.addFailure(1, "byte_1_correlations.csv", fmt.Errorf("boom"))
	result.finish()

	if err := WriteManifest(result, path); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	loaded, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if len(loaded.Plots) != 1 || loaded.Plots[0].Points != 4 || loaded.Failures[0].Error != "boom" {
		t.Errorf("Unexpected manifest content %+v", loaded)
	}
}

func TestFormatKey(t *testing.T) {
	if got := FormatKey([]int{0, 255, 16}); got != "Key is 0, 255, 16" {
		t.Errorf("Unexpected key line %q", got)
	}
}
