package credential

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"
	"go.uber.org/zap"
)

// errCorrupt marks files that exist but cannot be understood. They are
// treated as an absent credential rather than as unavailable storage.
var errCorrupt = errors.New("credential file corrupt")

// FileStore persists the credential as a single JSON record. The directory is
// created 0700 and the file written 0600 through an atomic rename.
//
// The last decoded record is kept together with the file's identity, so
// repeated reads of an unchanged file skip the JSON decode and, for sealed
// stores, the scrypt work.
type FileStore struct {
	path       string
	passphrase string
	workFactor int
	now        func() time.Time
	logger     *zap.Logger
	fallback   *fallback

	mu     sync.Mutex
	cached *cachedRecord
	opens  int
}

type cachedRecord struct {
	info os.FileInfo
	rec  Record
	err  error
}

func (c *cachedRecord) matches(info os.FileInfo) bool {
	return c != nil && os.SameFile(c.info, info) &&
		c.info.Size() == info.Size() && c.info.ModTime().Equal(info.ModTime())
}

// NewFileStore returns a store backed by path. An empty path means
// persistence is disabled and the store starts in its in-memory fallback.
func NewFileStore(path string, opts ...Option) *FileStore {
	o := buildOptions(opts)
	s := &FileStore{
		path:       path,
		passphrase: o.passphrase,
		workFactor: o.workFactor,
		now:        o.now,
		logger:     o.logger,
		fallback:   newFallback("file", o),
	}
	if path == "" {
		s.fallback.degrade("open", errors.New("no credential file configured"))
	}
	return s
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Set implements Store.
func (s *FileStore) Set(token string, lifetime float64) {
	rec, ok := newRecord(token, lifetime, s.now())
	if !ok {
		s.Clear()
		return
	}
	s.fallback.memory.put(rec)
	if s.fallback.active() {
		return
	}
	info, err := s.write(rec)
	if err != nil {
		s.forget()
		s.fallback.degrade("write", err)
		return
	}
	s.mu.Lock()
	s.cached = &cachedRecord{info: info, rec: rec}
	s.mu.Unlock()
}

// Get implements Store.
func (s *FileStore) Get() (string, bool) {
	if s.fallback.active() {
		return s.fallback.memory.Get()
	}
	rec, err := s.read()
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return "", false
		case errors.Is(err, errCorrupt):
			s.logger.Debug("ignoring unreadable credential file", zap.String("path", s.path), zap.Error(err))
			return "", false
		default:
			s.fallback.degrade("read", err)
			return s.fallback.memory.Get()
		}
	}
	if !rec.Live(s.now()) {
		return "", false
	}
	return rec.Token, true
}

// Clear implements Store.
func (s *FileStore) Clear() {
	s.fallback.memory.Clear()
	s.forget()
	if s.path == "" {
		return
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.fallback.degrade("clear", err)
	}
}

func (s *FileStore) forget() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// read returns the record on disk, decoding it only when the file differs
// from the one seen last time.
func (s *FileStore) read() (Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		s.forget()
		return Record{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached.matches(info) {
		return s.cached.rec, s.cached.err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return Record{}, err
	}
	rec, err := s.decode(data)
	if err == nil || errors.Is(err, errCorrupt) {
		s.cached = &cachedRecord{info: info, rec: rec, err: err}
	}
	return rec, err
}

// decode must be called with mu held.
func (s *FileStore) decode(data []byte) (Record, error) {
	if s.passphrase != "" {
		s.opens++
		plain, err := s.open(data)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", errCorrupt, err)
		}
		data = plain
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return rec, nil
}

func (s *FileStore) write(rec Record) (os.FileInfo, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal credential: %w", err)
	}
	if s.passphrase != "" {
		data, err = s.seal(data)
		if err != nil {
			return nil, err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create credential dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return nil, fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("chmod credential file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write credential file: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("stat credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return nil, fmt.Errorf("replace credential file %s: %w", s.path, err)
	}
	return info, nil
}

func (s *FileStore) seal(plain []byte) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("scrypt recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	var buf bytes.Buffer
	armored := armor.NewWriter(&buf)
	w, err := age.Encrypt(armored, recipient)
	if err != nil {
		return nil, fmt.Errorf("age encrypt: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, fmt.Errorf("age encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("age encrypt: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("age armor: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *FileStore) open(sealed []byte) ([]byte, error) {
	identity, err := age.NewScryptIdentity(s.passphrase)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(armor.NewReader(bytes.NewReader(sealed)), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
