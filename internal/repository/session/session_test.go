package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/jgivc/tracksearch/internal/common"
	"github.com/jgivc/tracksearch/internal/entity"
)

const sessionPath = "/data/session.json"

func testRepo(t *testing.T) (*sessionRepository, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewSessionRepositoryWithFS(fs, sessionPath, log), fs
}

func validSession(expiry time.Time) *entity.PersistedSession {
	return &entity.PersistedSession{
		Cookies: []entity.SessionCookie{
			{Name: "bb_session", Value: "abc", Domain: ".tracker.example.org", Path: "/"},
		},
		Username:      "user1",
		SessionExpiry: expiry.UnixMilli(),
		SavedAt:       time.Now().UnixMilli(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo, _ := testRepo(t)

	saved := validSession(time.Now().Add(time.Hour))
	require.NoError(t, repo.Save(saved))

	loaded, err := repo.Load()
	require.NoError(t, err)
	require.Equal(t, "user1", loaded.Username)
	require.Len(t, loaded.Cookies, 1)
	require.Equal(t, "bb_session", loaded.Cookies[0].Name)
}

func TestLoadAbsentFile(t *testing.T) {
	repo, _ := testRepo(t)

	_, err := repo.Load()
	require.ErrorIs(t, err, common.ErrNoSession)
}

func TestLoadClearedSentinel(t *testing.T) {
	repo, fs := testRepo(t)

	require.NoError(t, afero.WriteFile(fs, sessionPath, []byte{}, 0o600))

	_, err := repo.Load()
	require.ErrorIs(t, err, common.ErrNoSession)
}

func TestLoadCorruptedClearsFile(t *testing.T) {
	repo, fs := testRepo(t)

	require.NoError(t, afero.WriteFile(fs, sessionPath, []byte("{not json"), 0o600))

	_, err := repo.Load()
	require.ErrorIs(t, err, common.ErrNoSession)

	data, err := afero.ReadFile(fs, sessionPath)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestExpiryBoundary(t *testing.T) {
	// One millisecond in the past is absent (and clears the file), one
	// millisecond in the future is still valid.
	repo, fs := testRepo(t)

	past := validSession(time.Now().Add(-time.Millisecond))
	data, err := json.Marshal(past)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, sessionPath, data, 0o600))

	_, err = repo.Load()
	require.ErrorIs(t, err, common.ErrNoSession)

	onDisk, err := afero.ReadFile(fs, sessionPath)
	require.NoError(t, err)
	require.Empty(t, onDisk)

	future := validSession(time.Now().Add(time.Hour))
	require.NoError(t, repo.Save(future))

	loaded, err := repo.Load()
	require.NoError(t, err)
	require.Equal(t, future.SessionExpiry, loaded.SessionExpiry)
}

func TestSaveWithoutCookiesIsNoOp(t *testing.T) {
	repo, fs := testRepo(t)

	prior := validSession(time.Now().Add(time.Hour))
	require.NoError(t, repo.Save(prior))

	require.NoError(t, repo.Save(&entity.PersistedSession{Username: "other"}))
	require.NoError(t, repo.Save(nil))

	loaded, err := repo.Load()
	require.NoError(t, err)
	require.Equal(t, "user1", loaded.Username)

	_, err = fs.Stat(sessionPath)
	require.NoError(t, err)
}

func TestClearThenLoad(t *testing.T) {
	repo, _ := testRepo(t)

	require.NoError(t, repo.Save(validSession(time.Now().Add(time.Hour))))
	require.NoError(t, repo.Clear())

	_, err := repo.Load()
	require.ErrorIs(t, err, common.ErrNoSession)
}
