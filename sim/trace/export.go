package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// WriteJSONL writes one JSON object per tick record.
func WriteJSONL(w io.Writer, st *SimulationTrace) error {
	if st == nil {
		return nil
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, t := range st.Ticks {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encoding tick %d: %w", t.Step, err)
		}
	}
	return bw.Flush()
}

// ReadJSONL parses records written by WriteJSONL.
func ReadJSONL(r io.Reader) ([]TickRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var out []TickRecord
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec TickRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: unmarshal: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// compressed reports whether path names a zstd stream.
func compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// ExportFile writes the trace as JSONL to path, zstd-compressed when the path
// ends in ".zst". Parent directories are created as needed.
func ExportFile(path string, st *SimulationTrace) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating trace directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !compressed(path) {
		return WriteJSONL(f, st)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := WriteJSONL(enc, st); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ImportFile reads a file produced by ExportFile.
func ImportFile(path string) ([]TickRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !compressed(path) {
		return ReadJSONL(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return ReadJSONL(dec)
}
