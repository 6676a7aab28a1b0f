// Package credential keeps the console's single bearer token together with
// its absolute expiry.
//
// Every backend satisfies Store and never reports an error: when durable
// storage becomes unavailable the backend degrades to an in-memory copy for
// the rest of the process and logs a warning.
package credential

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionLifetime is the server-issued token lifetime expressed as a
// fraction of a day (12 hours).
const SessionLifetime = 12.0 / 24

const day = 24 * time.Hour

// Store holds at most one credential.
type Store interface {
	// Set writes token with an expiry of lifetime days from now, replacing
	// any previous value. An empty token or non-positive lifetime clears.
	Set(token string, lifetime float64)
	// Get returns the token if present and not expired.
	Get() (string, bool)
	// Clear removes the token. Idempotent.
	Clear()
}

// Record is the persisted credential layout.
type Record struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Live reports whether the record holds a token that has not expired at now.
func (r Record) Live(now time.Time) bool {
	return r.Token != "" && now.Before(r.ExpiresAt)
}

// Fraction converts a duration into the day fraction accepted by Set.
func Fraction(d time.Duration) float64 {
	return float64(d) / float64(day)
}

func newRecord(token string, lifetime float64, now time.Time) (Record, bool) {
	if token == "" || lifetime <= 0 {
		return Record{}, false
	}
	return Record{
		Token:     token,
		ExpiresAt: now.Add(time.Duration(lifetime * float64(day))).UTC(),
	}, true
}

// Option customises a store.
type Option func(*options)

type options struct {
	now        func() time.Time
	logger     *zap.Logger
	passphrase string
	workFactor int
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPassphrase seals the file backend with age using a scrypt passphrase.
func WithPassphrase(passphrase string) Option {
	return func(o *options) { o.passphrase = passphrase }
}

// WithSealWorkFactor sets the scrypt work factor (log2 N) used when sealing.
func WithSealWorkFactor(logN int) Option {
	return func(o *options) { o.workFactor = logN }
}

// MemoryStore keeps the credential in process memory only.
type MemoryStore struct {
	mu     sync.Mutex
	record Record
	now    func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{now: o.now}
}

// Set implements Store.
func (m *MemoryStore) Set(token string, lifetime float64) {
	rec, ok := newRecord(token, lifetime, m.now())
	m.mu.Lock()
	defer m.mu.Unlock()
	if !ok {
		m.record = Record{}
		return
	}
	m.record = rec
}

// Get implements Store.
func (m *MemoryStore) Get() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.record.Live(m.now()) {
		return "", false
	}
	return m.record.Token, true
}

// Clear implements Store.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = Record{}
}

func (m *MemoryStore) put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = rec
}

// fallback is the shared degradation state of durable backends.
type fallback struct {
	mu       sync.Mutex
	degraded bool
	memory   *MemoryStore
	logger   *zap.Logger
	backend  string
}

func newFallback(backend string, o options) *fallback {
	return &fallback{
		memory:  &MemoryStore{now: o.now},
		logger:  o.logger,
		backend: backend,
	}
}

func (f *fallback) active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *fallback) degrade(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		return
	}
	f.degraded = true
	f.logger.Warn("credential storage unavailable; using in-memory fallback",
		zap.String("backend", f.backend),
		zap.String("op", op),
		zap.Error(err))
}
