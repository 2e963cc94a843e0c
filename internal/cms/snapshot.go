package cms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danielchalef/jsplit/pkg/jsplit"
	"github.com/klauspost/pgzip"
	"github.com/rs/zerolog"
)

// A snapshot is a single JSON object mapping dataset names to arrays of
// records, optionally gzip compressed:
//
//	{"physician_services": [{...}, ...], "part_b_drugs": [...]}
//
// Opening one splits it into per-dataset NDJSON files which are scanned to
// answer queries without network access.

// ExportRequest lists the codes to pull for each dataset.
type ExportRequest struct {
	Codes map[string][]string // dataset name → code values
	// PageSize bounds each API request.
	PageSize int
}

// exportFilterField is the field each dataset is filtered on.
var exportFilterField = map[string]string{
	PhysicianServices.Name:  FieldHCPCSCode,
	OutpatientServices.Name: FieldAPCCode,
	InpatientServices.Name:  FieldDRGCode,
	PartBDrugs.Name:         FieldHCPCSCode,
}

// Export pages through src for every requested code and writes a snapshot
// to w. When gzipped is true the output is compressed with pgzip.
func Export(ctx context.Context, src Querier, req ExportRequest, w io.Writer, gzipped bool, onRecords func(dataset string, n int)) error {
	out := w
	var gz *pgzip.Writer
	if gzipped {
		gz = pgzip.NewWriter(w)
		out = gz
	}
	bw := bufio.NewWriter(out)

	names := make([]string, 0, len(req.Codes))
	for name := range req.Codes {
		names = append(names, name)
	}
	sort.Strings(names)

	bw.WriteByte('{')
	for di, name := range names {
		ds, ok := DatasetByName(name)
		if !ok {
			return fmt.Errorf("unknown dataset %q", name)
		}
		if di > 0 {
			bw.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		bw.Write(key)
		bw.WriteString(":[")

		first := true
		for _, code := range req.Codes[name] {
			n, err := exportCode(ctx, src, ds, code, req.PageSize, func(r Record) error {
				if !first {
					bw.WriteByte(',')
				}
				first = false
				data, err := json.Marshal(r)
				if err != nil {
					return err
				}
				_, err = bw.Write(data)
				return err
			})
			if err != nil {
				return fmt.Errorf("exporting %s %s: %w", name, code, err)
			}
			if onRecords != nil {
				onRecords(name, n)
			}
		}
		bw.WriteByte(']')
	}
	bw.WriteString("}\n")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("closing gzip writer: %w", err)
		}
	}
	return nil
}

func exportCode(ctx context.Context, src Querier, ds Dataset, code string, size int, emit func(Record) error) (int, error) {
	size = pageSize(size)
	total := 0
	for offset := 0; ; offset += size {
		records, err := src.Query(ctx, Query{
			Dataset: ds,
			Filters: map[string]string{exportFilterField[ds.Name]: code},
			Size:    size,
			Offset:  offset,
		})
		if err != nil {
			return total, err
		}
		for _, r := range records {
			if err := emit(r); err != nil {
				return total, err
			}
		}
		total += len(records)
		if len(records) < size {
			return total, nil
		}
	}
}

// Snapshot answers queries from split NDJSON files on local disk.
type Snapshot struct {
	Dir    string
	files  map[string][]string // dataset name → NDJSON paths
	Logger zerolog.Logger
}

// OpenSnapshot decompresses (if needed), validates and splits the snapshot
// at path into workDir.
func OpenSnapshot(path, workDir string, logger zerolog.Logger) (*Snapshot, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}

	input := path
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		plain, err := decompressTo(path, workDir)
		if err != nil {
			return nil, err
		}
		input = plain
	}
	if err := verifyJSONBrackets(input); err != nil {
		return nil, fmt.Errorf("snapshot corrupt: %w", err)
	}

	splitDir := filepath.Join(workDir, "split")
	if err := os.MkdirAll(splitDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating split dir: %w", err)
	}
	files, err := splitSnapshot(input, splitDir)
	if err != nil {
		return nil, err
	}
	for name, paths := range files {
		logger.Debug().Str("dataset", name).Int("files", len(paths)).Msg("snapshot split")
	}
	return &Snapshot{Dir: splitDir, files: files, Logger: logger}, nil
}

// Datasets returns the dataset names present in the snapshot.
func (s *Snapshot) Datasets() []string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of records held for a dataset.
func (s *Snapshot) Count(dataset string) (int, error) {
	n := 0
	for _, p := range s.files[dataset] {
		err := scanLines(p, nil, func([]byte) bool {
			n++
			return true
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Query scans the dataset's NDJSON files. Lines that do not contain every
// filter value as a quoted substring are skipped before parsing.
func (s *Snapshot) Query(ctx context.Context, q Query) ([]Record, error) {
	var patterns [][]byte
	for _, v := range q.Filters {
		quoted, _ := json.Marshal(v)
		patterns = append(patterns, quoted)
	}

	size := pageSize(q.Size)
	skip := q.Offset
	var out []Record
	p := &recordParser{fields: q.Dataset.Fields}

	for _, path := range s.files[q.Dataset.Name] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := scanLines(path, patterns, func(line []byte) bool {
			rec, err := p.parse(line)
			if err != nil {
				return true
			}
			if !q.matches(rec) {
				return true
			}
			if skip > 0 {
				skip--
				return true
			}
			out = append(out, rec)
			return len(out) < size
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", filepath.Base(path), err)
		}
		if len(out) >= size {
			break
		}
	}
	return out, nil
}

// splitSnapshot runs jsplit and groups the produced files by dataset.
func splitSnapshot(inputPath, outputDir string) (map[string][]string, error) {
	// Suppress jsplit's stdout prints
	origStdout := os.Stdout
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, fmt.Errorf("failed to open /dev/null: %w", err)
	}
	os.Stdout = devNull
	err = jsplit.Split(inputPath, outputDir, true)
	os.Stdout = origStdout
	devNull.Close()
	if err != nil {
		return nil, fmt.Errorf("jsplit split failed: %w", err)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read split output dir: %w", err)
	}

	files := map[string][]string{}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		for _, ds := range Datasets {
			if strings.HasPrefix(name, ds.Name+"_") {
				files[ds.Name] = append(files[ds.Name], filepath.Join(outputDir, name))
			}
		}
	}
	for _, paths := range files {
		sort.Strings(paths)
	}
	return files, nil
}

func scanLines(path string, patterns [][]byte, fn func([]byte) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !lineContainsAll(line, patterns) {
			continue
		}
		if !fn(line) {
			return nil
		}
	}
	return scanner.Err()
}

func lineContainsAll(line []byte, patterns [][]byte) bool {
	for _, p := range patterns {
		if !bytes.Contains(line, p) {
			return false
		}
	}
	return true
}

func decompressTo(path, dir string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	gz, err := pgzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	tmp, err := os.CreateTemp(dir, "snapshot-*.json")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	_, err = io.Copy(tmp, gz)
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing decompressed snapshot: %w", err)
	}
	return tmp.Name(), nil
}

// verifyJSONBrackets checks that a file starts with '{' and ends with '}',
// which catches truncated downloads and broken decompression cheaply.
func verifyJSONBrackets(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty file")
	}

	head := make([]byte, min(int64(64), info.Size()))
	if _, err := f.ReadAt(head, 0); err != nil {
		return err
	}
	if h := bytes.TrimLeft(head, " \t\r\n"); len(h) == 0 || h[0] != '{' {
		return fmt.Errorf("file does not start with '{'")
	}

	tailSize := min(int64(32), info.Size())
	tail := make([]byte, tailSize)
	if _, err := f.ReadAt(tail, info.Size()-tailSize); err != nil {
		return err
	}
	if t := bytes.TrimRight(tail, " \t\r\n"); len(t) == 0 || t[len(t)-1] != '}' {
		return fmt.Errorf("file does not end with '}'")
	}
	return nil
}
