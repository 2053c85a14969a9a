package model

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// SchemaVersion is the version of the flat record format. Fields may be added
// in later versions; existing fields are never renamed or removed.
const SchemaVersion = 1

// Record type tags written alongside each flat record.
const (
	RecordSymbol       = "symbol"
	RecordRelationship = "relationship"
	RecordPending      = "pending_relationship"
	RecordIdentifier   = "identifier"
	RecordFile         = "file"
)

// RecordType returns the wire tag of a supported record, or "" for anything else.
func RecordType(v any) string {
	switch v.(type) {
	case *Symbol:
		return RecordSymbol
	case *Relationship:
		return RecordRelationship
	case *PendingRelationship:
		return RecordPending
	case *Identifier:
		return RecordIdentifier
	case *File:
		return RecordFile
	}
	return ""
}

type envelope struct {
	RecordType    string `json:"record_type"`
	SchemaVersion int    `json:"schema_version"`
}

// EncodeRecords writes one flat JSON object per line. Each object carries the
// record's own fields plus record_type and schema_version.
func EncodeRecords(w io.Writer, records ...any) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		rt := RecordType(r)
		if rt == "" {
			return fmt.Errorf("unsupported record type %T", r)
		}
		var line any
		env := envelope{RecordType: rt, SchemaVersion: SchemaVersion}
		switch v := r.(type) {
		case *Symbol:
			line = struct {
				envelope
				*Symbol
			}{env, v}
		case *Relationship:
			line = struct {
				envelope
				*Relationship
			}{env, v}
		case *PendingRelationship:
			line = struct {
				envelope
				*PendingRelationship
			}{env, v}
		case *Identifier:
			line = struct {
				envelope
				*Identifier
			}{env, v}
		case *File:
			line = struct {
				envelope
				*File
			}{env, v}
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode %s record: %w", rt, err)
		}
	}
	return nil
}

// DecodeRecords reads records written by EncodeRecords. Unknown fields are ignored
// and records newer than SchemaVersion are accepted as long as their type is known.
func DecodeRecords(r io.Reader) ([]any, error) {
	var out []any
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode record header: %w", lineNo, err)
		}
		var rec any
		switch env.RecordType {
		case RecordSymbol:
			rec = &Symbol{}
		case RecordRelationship:
			rec = &Relationship{}
		case RecordPending:
			rec = &PendingRelationship{}
		case RecordIdentifier:
			rec = &Identifier{}
		case RecordFile:
			rec = &File{}
		default:
			return nil, fmt.Errorf("line %d: unknown record type %q", lineNo, env.RecordType)
		}
		if err := json.Unmarshal(line, rec); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode %s record: %w", lineNo, env.RecordType, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}
