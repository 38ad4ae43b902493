package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the on-disk progress cursor. The file is overwritten after each
// fully committed page, so a restart re-fetches at most one page.
type State struct {
	RunID         string          `json:"run_id"`
	CompletedTags map[string]bool `json:"completed_tags"`
	CurrentTag    string          `json:"current_tag,omitempty"`
	NextCursor    string          `json:"next_cursor,omitempty"`
	Processed     int             `json:"processed"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Tracker persists crawl progress to a JSON file. The crawl loop is the
// only writer, but the API server reads counters from its own goroutine,
// so state access is guarded by a mutex.
type Tracker struct {
	path   string
	logger *zap.Logger

	mu    sync.RWMutex
	state State
}

func NewTracker(path string, logger *zap.Logger) *Tracker {
	return &Tracker{path: path, logger: logger}
}

// Load reads the progress file. An absent file means start from the
// beginning and is not an error.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		t.state = State{
			RunID:         uuid.NewString(),
			CompletedTags: make(map[string]bool),
		}
		t.logger.Info("No progress file found, starting fresh",
			zap.String("path", t.path),
			zap.String("run_id", t.state.RunID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read progress file %s: %w", t.path, err)
	}

	if err := json.Unmarshal(data, &t.state); err != nil {
		return fmt.Errorf("failed to parse progress file %s: %w", t.path, err)
	}
	if t.state.CompletedTags == nil {
		t.state.CompletedTags = make(map[string]bool)
	}
	if t.state.RunID == "" {
		t.state.RunID = uuid.NewString()
	}

	t.logger.Info("Resuming from progress file",
		zap.String("path", t.path),
		zap.String("run_id", t.state.RunID),
		zap.Int("completed_tags", len(t.state.CompletedTags)),
		zap.String("current_tag", t.state.CurrentTag),
		zap.Int("processed", t.state.Processed))
	return nil
}

// IsCompleted reports whether a tag was fully crawled in an earlier run.
func (t *Tracker) IsCompleted(tagLink string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.CompletedTags[tagLink]
}

// ResumeCursor returns the saved page cursor for a tag, or "" if the tag
// was not the one in flight when the process last stopped.
func (t *Tracker) ResumeCursor(tagLink string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state.CurrentTag == tagLink {
		return t.state.NextCursor
	}
	return ""
}

// CommitPage records that a page for tagLink fully committed and the next
// fetch should resume from nextCursor.
func (t *Tracker) CommitPage(tagLink, nextCursor string, processed int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.CurrentTag = tagLink
	t.state.NextCursor = nextCursor
	t.state.Processed += processed
	return t.save()
}

// CompleteTag marks a tag as fully crawled.
func (t *Tracker) CompleteTag(tagLink string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.CompletedTags[tagLink] = true
	if t.state.CurrentTag == tagLink {
		t.state.CurrentTag = ""
		t.state.NextCursor = ""
	}
	return t.save()
}

// Processed returns the total number of records processed across all runs.
func (t *Tracker) Processed() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Processed
}

// CompletedCount returns how many tags are fully crawled.
func (t *Tracker) CompletedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.state.CompletedTags)
}

func (t *Tracker) RunID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.RunID
}

// save writes the state via a temp file + rename so a crash never leaves a
// truncated progress file behind. Callers must hold the write lock.
func (t *Tracker) save() error {
	t.state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create progress dir %s: %w", dir, err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace progress file: %w", err)
	}

	return nil
}
