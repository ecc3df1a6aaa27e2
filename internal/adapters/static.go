package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/addrlens/internal/schemas"
	"github.com/jonathan/addrlens/internal/types"
)

// StaticProducer reads records from a JSON file that follows the tag record schema.
type StaticProducer struct {
	Path   string
	Source string
}

// NewStaticProducer creates a producer for path. An empty source defaults to the
// file name without its extension.
func NewStaticProducer(path, source string) *StaticProducer {
	if source == "" {
		base := filepath.Base(path)
		source = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &StaticProducer{Path: path, Source: strings.ToLower(source)}
}

// Name returns the source name.
func (p *StaticProducer) Name() string { return p.Source }

// Produce reads and validates the file.
func (p *StaticProducer) Produce(_ context.Context) ([]types.TagRecord, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.Path, err)
	}
	return DecodeRecords(data)
}

// DecodeRecords validates data against the tag record schema and decodes it.
func DecodeRecords(data []byte) ([]types.TagRecord, error) {
	if err := schemas.ValidateTagRecords(data); err != nil {
		return nil, err
	}
	var records []types.TagRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode tag records: %w", err)
	}
	return records, nil
}
