package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/jgivc/tracksearch/internal/common"
	"github.com/jgivc/tracksearch/internal/entity"
)

const fileMode = 0o600

// sessionRepository keeps one JSON session file per installation. An
// empty-string file content is the "cleared" sentinel, distinct from "file
// absent"; both read as no session.
type sessionRepository struct {
	fs   afero.Fs
	path string
	log  *slog.Logger
}

func NewSessionRepository(path string, log *slog.Logger) *sessionRepository {
	return NewSessionRepositoryWithFS(afero.NewOsFs(), path, log)
}

func NewSessionRepositoryWithFS(fs afero.Fs, path string, log *slog.Logger) *sessionRepository {
	return &sessionRepository{
		fs:   fs,
		path: path,
		log:  log.With(slog.String("item", "SessionRepository")),
	}
}

// Load reads the persisted session. Corrupted or expired content is treated
// as absent and the file is cleared.
func (r *sessionRepository) Load() (*entity.PersistedSession, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrNoSession
		}

		return nil, fmt.Errorf("cannot read session file: %w", err)
	}

	if len(data) == 0 {
		return nil, common.ErrNoSession
	}

	var s entity.PersistedSession
	if err := json.Unmarshal(data, &s); err != nil {
		r.log.Warn("Session file is corrupted, clearing", slog.Any("error", err))
		if err := r.Clear(); err != nil {
			r.log.Error("Cannot clear session file", slog.Any("error", err))
		}

		return nil, common.ErrNoSession
	}

	if s.SessionExpiry <= time.Now().UnixMilli() {
		r.log.Info("Persisted session is expired, clearing",
			slog.Int64("session_expiry_epoch_ms", s.SessionExpiry))
		if err := r.Clear(); err != nil {
			r.log.Error("Cannot clear session file", slog.Any("error", err))
		}

		return nil, common.ErrNoSession
	}

	if len(s.Cookies) == 0 {
		return nil, common.ErrNoSession
	}

	return &s, nil
}

// Save writes the session. A session without cookies is a no-op, not a
// deletion.
func (r *sessionRepository) Save(s *entity.PersistedSession) error {
	if s == nil || len(s.Cookies) == 0 {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("cannot marshal session: %w", err)
	}

	if err := afero.WriteFile(r.fs, r.path, data, fileMode); err != nil {
		return fmt.Errorf("cannot write session file: %w", err)
	}

	return nil
}

// Clear writes the empty-string sentinel.
func (r *sessionRepository) Clear() error {
	if err := afero.WriteFile(r.fs, r.path, []byte{}, fileMode); err != nil {
		return fmt.Errorf("cannot clear session file: %w", err)
	}

	return nil
}
