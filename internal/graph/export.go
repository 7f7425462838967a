package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExportJSON writes a snapshot of g to path. The data goes to a uniquely
// named temp file in the same directory which is renamed into place; the temp
// file is removed on every failure path.
func ExportJSON(g *Graph, path string) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("graph export: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err = enc.Encode(g.Snapshot()); err != nil {
		return fmt.Errorf("graph export: encode: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("graph export: sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("graph export: close: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("graph export: rename: %w", err)
	}
	return nil
}
