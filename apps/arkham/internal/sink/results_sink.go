package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"arkham/apps/arkham/internal/model"
)

// ResultsSink appends one human-readable line per persisted record to the
// output file. Writes are best-effort: a failure is logged by the caller
// and never aborts the run.
type ResultsSink struct {
	file   *os.File
	logger *zap.Logger
}

func NewResultsSink(path string, logger *zap.Logger) (*ResultsSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output dir %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file %s: %w", path, err)
	}

	return &ResultsSink{file: file, logger: logger}, nil
}

// Append writes one pipe-delimited line for a record:
// timestamp|tag|address|chain|name|entity_type|labels
func (s *ResultsSink) Append(tagLink string, record model.TaggedAddress) error {
	labels := make([]string, 0, len(record.Tags))
	for _, tagRef := range record.Tags {
		labels = append(labels, tagRef.Tag)
	}

	line := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s\n",
		time.Now().UTC().Format(time.RFC3339),
		tagLink,
		record.Address,
		record.Chain,
		record.Name,
		record.EntityType,
		strings.Join(labels, ","))

	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to append result line: %w", err)
	}
	return nil
}

func (s *ResultsSink) Close() error {
	return s.file.Close()
}
