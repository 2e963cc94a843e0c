package cms

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	simdjson "github.com/minio/simdjson-go"
)

var useSimd = simdjson.SupportedCPU()

// recordParser turns one JSON object into a Record, keeping only the
// dataset's fields. It reuses simdjson buffers between calls and is not
// safe for concurrent use.
type recordParser struct {
	fields []string
	pj     *simdjson.ParsedJson
}

func (p *recordParser) parse(raw []byte) (Record, error) {
	if !useSimd {
		return parseRecordStd(raw, p.fields)
	}
	var err error
	p.pj, err = simdjson.Parse(raw, p.pj)
	if err != nil {
		return nil, err
	}
	rec := make(Record, len(p.fields))
	p.pj.ForEach(func(i simdjson.Iter) error {
		for _, f := range p.fields {
			elem, err := i.FindElement(nil, f)
			if err != nil {
				continue
			}
			switch elem.Type {
			case simdjson.TypeString:
				if s, err := elem.Iter.String(); err == nil {
					rec[f] = s
				}
			case simdjson.TypeInt, simdjson.TypeUint, simdjson.TypeFloat:
				if v, err := elem.Iter.Float(); err == nil {
					rec[f] = strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
		}
		return nil
	})
	return rec, nil
}

func parseRecordStd(raw []byte, fields []string) (Record, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	rec := make(Record, len(fields))
	for _, f := range fields {
		switch v := m[f].(type) {
		case string:
			rec[f] = v
		case float64:
			rec[f] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return rec, nil
}

// decodeRecords streams a top-level JSON array of objects, decoding one
// element at a time. Malformed elements are skipped.
func decodeRecords(r io.Reader, fields []string, fn func(Record) bool) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading opening token: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("expected '[', got %v", tok)
	}

	p := &recordParser{fields: fields}
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decoding element: %w", err)
		}
		rec, err := p.parse(raw)
		if err != nil {
			continue
		}
		if !fn(rec) {
			return nil
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("reading array end: %w", err)
	}
	return nil
}
