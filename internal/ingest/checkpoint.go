package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// checkpointEntry is one precomputed (chunk, vector) pair. The checkpoint file
// is a JSON array of these, published atomically so a half-written file can
// never be mistaken for a valid checkpoint on restart.
type checkpointEntry struct {
	Text     string    `json:"text"`
	SourceID string    `json:"source_id"`
	Vector   []float32 `json:"vector"`
}

// writeCheckpoint writes entries to path via a temporary file and atomic rename.
func writeCheckpoint(path string, entries []checkpointEntry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".embeddings-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(entries); err != nil {
		tmp.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish checkpoint: %w", err)
	}
	return nil
}

// readCheckpoint loads a previously published checkpoint. Returns ok=false if
// the file does not exist; a file that exists but cannot be decoded is an
// error, since checkpoints are only ever published whole.
func readCheckpoint(path string) ([]checkpointEntry, bool, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open checkpoint: %w", err)
	}
	defer file.Close()

	var entries []checkpointEntry
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, false, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return entries, true, nil
}
