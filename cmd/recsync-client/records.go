package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/r2northstar/recsync/pkg/record"
)

// loadRecords reads and validates the record inventory a JSON file describes.
// Record construction is explicitly out of scope for pkg/caster itself (the
// engine takes an already-built []record.Record), so the standalone binary
// needs some concrete way to obtain one; a flat JSON array of objects
// matching record.Record's fields is the simplest choice that needs no
// schema of its own beyond what the type already declares.
func loadRecords(path string) ([]record.Record, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}

	var recs []record.Record
	if err := json.Unmarshal(buf, &recs); err != nil {
		return nil, fmt.Errorf("parse records file: %w", err)
	}

	if err := record.Validate(recs); err != nil {
		return nil, fmt.Errorf("validate records: %w", err)
	}
	return recs, nil
}
