package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LocalStore keeps finished archives on disk so the download endpoint can
// serve them without a round trip to S3. Files are named {jobID}_{name}.
type LocalStore struct {
	Dir string
}

// NewLocalStore ensures the result directory exists.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "results"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create result dir: %w", err)
	}
	return &LocalStore{Dir: dir}, nil
}

// Save writes an archive and returns its path.
func (s *LocalStore) Save(jobID, name string, data []byte) (string, error) {
	p := filepath.Join(s.Dir, fmt.Sprintf("%s_%s", jobID, filepath.Base(name)))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return p, nil
}

// Open reads a previously saved archive by job id. Returns the archive
// filename (without the job prefix) and its bytes.
func (s *LocalStore) Open(jobID string) (string, []byte, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, jobID+"_*"))
	if err != nil || len(matches) == 0 {
		return "", nil, fmt.Errorf("archive for job %s not found", jobID)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", nil, err
	}
	name := strings.TrimPrefix(filepath.Base(matches[0]), jobID+"_")
	return name, data, nil
}

// Cleanup removes archives older than maxAge. Run periodically; clients
// are expected to download results promptly.
func (s *LocalStore) Cleanup(maxAge time.Duration) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= maxAge {
			if os.Remove(filepath.Join(s.Dir, e.Name())) == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", s.Dir).Msg("cleaned up expired archives")
	}
}
