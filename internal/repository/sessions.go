package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/entity"
)

const sessionExt = ".json"

var (
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	unsafeNameChars  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// SessionStore keeps the normalized row set of each session as one JSON file
// in a staging directory. A session file is written only by the run that owns
// the session.
type SessionStore struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

func NewSessionStore(dir string, logger *slog.Logger) (*SessionStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.NewAppError("SESSION_STORE", "create staging directory", errors.Join(common.ErrStorage, err))
	}
	return &SessionStore{dir: dir, logger: logger, now: time.Now}, nil
}

// NewSessionID derives a session key from the ingestion time and the original
// filename. A short random suffix keeps uploads within the same second apart.
func NewSessionID(at time.Time, filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.Trim(unsafeNameChars.ReplaceAllString(stem, "_"), "._-")
	if stem == "" {
		stem = "upload"
	}
	if len(stem) > 64 {
		stem = stem[:64]
	}
	return fmt.Sprintf("%s_%s_%s", at.Format("20060102_150405"), uuid.NewString()[:8], stem)
}

// ValidSessionID reports whether id is safe to use as a file name.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id) && !strings.Contains(id, "..")
}

func (s *SessionStore) path(id string) string {
	return filepath.Join(s.dir, id+sessionExt)
}

// Create stages a new session built from an already normalized sheet.
func (s *SessionStore) Create(ctx context.Context, filename, format string, header []string, body [][]string) (*entity.Session, error) {
	now := s.now().UTC()
	sess := &entity.Session{
		ID:               NewSessionID(now, filename),
		OriginalFilename: filepath.Base(filename),
		Format:           format,
		Header:           header,
		Rows:             make([]entity.Row, len(body)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i, fields := range body {
		sess.Rows[i] = entity.NewRow(fields)
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("session.created", "session_id", sess.ID, "filename", sess.OriginalFilename, "rows", len(sess.Rows))
	return sess, nil
}

// Load reads a staged session.
func (s *SessionStore) Load(ctx context.Context, id string) (*entity.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidSessionID(id) {
		return nil, common.NewAppError("SESSION_ID", "invalid session id: "+id, common.ErrInvalidInput)
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, common.NewAppError("SESSION_NOT_FOUND", "session not found: "+id, common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError("SESSION_READ", "read session "+id, errors.Join(common.ErrStorage, err))
	}
	var sess entity.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, common.NewAppError("SESSION_DECODE", "decode session "+id, errors.Join(common.ErrStorage, err))
	}
	return &sess, nil
}

// Save writes the session atomically (temp file, then rename).
func (s *SessionStore) Save(ctx context.Context, sess *entity.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidSessionID(sess.ID) {
		return common.NewAppError("SESSION_ID", "invalid session id: "+sess.ID, common.ErrInvalidInput)
	}
	sess.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return common.NewAppError("SESSION_ENCODE", "encode session "+sess.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, sess.ID+".*.tmp")
	if err != nil {
		return common.NewAppError("SESSION_WRITE", "write session "+sess.ID, errors.Join(common.ErrStorage, err))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return common.NewAppError("SESSION_WRITE", "write session "+sess.ID, errors.Join(common.ErrStorage, err))
	}
	if err := tmp.Close(); err != nil {
		return common.NewAppError("SESSION_WRITE", "write session "+sess.ID, errors.Join(common.ErrStorage, err))
	}
	if err := os.Rename(tmp.Name(), s.path(sess.ID)); err != nil {
		return common.NewAppError("SESSION_WRITE", "write session "+sess.ID, errors.Join(common.ErrStorage, err))
	}
	return nil
}

// Delete removes a staged session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if !ValidSessionID(id) {
		return common.NewAppError("SESSION_ID", "invalid session id: "+id, common.ErrInvalidInput)
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return common.NewAppError("SESSION_DELETE", "delete session "+id, errors.Join(common.ErrStorage, err))
	}
	s.logger.Debug("session.deleted", "session_id", id)
	return nil
}

// List returns the IDs of all staged sessions, oldest key first.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, common.NewAppError("SESSION_LIST", "list sessions", errors.Join(common.ErrStorage, err))
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, sessionExt) {
			continue
		}
		if id := strings.TrimSuffix(name, sessionExt); ValidSessionID(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
