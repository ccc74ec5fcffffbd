// Package history persists per-employee conversation transcripts as JSON
// files, one file per employee, append-only.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Turn types.
const (
	TypeUser = "user"
	TypeBot  = "bot"
)

// Turn is one entry in a conversation transcript.
type Turn struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store reads and appends transcripts under a single directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) path(employeeID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("chat_history_%s.json", employeeID))
}

// Load returns the transcript for the employee in order.
// A missing transcript is an empty one, not an error.
func (s *Store) Load(employeeID string) ([]Turn, error) {
	data, err := os.ReadFile(s.path(employeeID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading transcript for %s: %w", employeeID, err)
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parsing transcript for %s: %w", employeeID, err)
	}
	return turns, nil
}

// Append adds a user/bot turn pair to the employee's transcript.
func (s *Store) Append(employeeID, userMessage, botReply string) error {
	turns, err := s.Load(employeeID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	turns = append(turns,
		Turn{Type: TypeUser, Content: userMessage, Timestamp: now},
		Turn{Type: TypeBot, Content: botReply, Timestamp: now},
	)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding transcript for %s: %w", employeeID, err)
	}
	if err := os.WriteFile(s.path(employeeID), data, 0o644); err != nil {
		return fmt.Errorf("writing transcript for %s: %w", employeeID, err)
	}
	return nil
}
