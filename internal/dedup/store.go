// Package dedup tracks record identity for the lifetime of one run so that
// no natural key is admitted twice.
package dedup

import (
	"sync"

	"go.uber.org/zap"
)

// Decision is the result of an admission attempt.
type Decision int

// Admission decisions. First admitted wins; concurrent admits for the same
// key never both succeed.
const (
	Admitted Decision = iota
	DuplicateRejected
)

// Store is the in-run seen-set. State is scoped to a single run and discarded
// at run end; there is no cross-run persistence.
type Store struct {
	mu        sync.Mutex
	seen      map[string]string
	byPrint   map[string]string
	anomalies int64
	logger    *zap.Logger
}

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		seen:    make(map[string]string),
		byPrint: make(map[string]string),
		logger:  logger,
	}
}

// Admit records the natural key and content fingerprint. A repeated key is
// rejected. A repeated fingerprint under a different key is admitted but
// logged as a soft anomaly: ambiguous real-world identity is not resolved
// here.
func (s *Store) Admit(recordID, fingerprint string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[recordID]; dup {
		return DuplicateRejected
	}
	if prior, collision := s.byPrint[fingerprint]; collision && fingerprint != "" {
		s.anomalies++
		s.logger.Warn("fingerprint collision across distinct record ids",
			zap.String("record_id", recordID),
			zap.String("prior_record_id", prior),
			zap.String("fingerprint", fingerprint),
		)
	}
	s.seen[recordID] = fingerprint
	if fingerprint != "" {
		if _, exists := s.byPrint[fingerprint]; !exists {
			s.byPrint[fingerprint] = recordID
		}
	}
	return Admitted
}

// Seen reports whether the key was already admitted.
func (s *Store) Seen(recordID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[recordID]
	return ok
}

// Size returns the number of admitted keys.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Anomalies returns how many fingerprint collisions were observed.
func (s *Store) Anomalies() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anomalies
}
