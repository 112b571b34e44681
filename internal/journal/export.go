// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"go.yaml.in/yaml/v3"
)

// Format selects the export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml" or "json".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want yaml or json)", s)
	}
}

const exportLimit = 100000

// Export writes the entries selected by opts to w, oldest first.
func (s *Store) Export(ctx context.Context, w io.Writer, f Format, opts QueryOptions) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}

	var data []byte
	switch f {
	case FormatYAML:
		data, err = yaml.Marshal(entries)
	case FormatJSON:
		data, err = json.MarshalIndent(entries, "", "  ")
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", f, err)
	}
	_, err = w.Write(data)
	return err
}

// ExportYAML writes the journal to <dir>/export.yaml and returns its path.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	return s.exportFile(ctx, FormatYAML, opts)
}

// ExportJSON writes the journal to <dir>/export.json and returns its path.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	return s.exportFile(ctx, FormatJSON, opts)
}

func (s *Store) exportFile(ctx context.Context, f Format, opts QueryOptions) (string, error) {
	path := filepath.Join(s.dir, "export."+string(f))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	if err := s.Export(ctx, file, f, opts); err != nil {
		file.Close()
		return "", err
	}
	return path, file.Close()
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	opts.Limit = exportLimit
	entries, err := s.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	slices.Reverse(entries)
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
