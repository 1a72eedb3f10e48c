package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// FileSource serves messages from a JSON file holding an array of RawMessage.
// It is used for replays and local runs without Gmail access.
type FileSource struct {
	path string
}

// NewFileSource creates a new FileSource
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// FetchRecent returns at most limit messages from the file, in file order
func (s *FileSource) FetchRecent(ctx context.Context, limit int) ([]domain.RawMessage, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, domain.NewTransportError("file.read", err)
	}

	var msgs []domain.RawMessage
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, domain.NewTransportError("file.decode", fmt.Errorf("%s: %w", s.path, err))
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}
