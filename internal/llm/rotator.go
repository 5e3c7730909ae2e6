package llm

import (
	"sync"

	"dev.roundtable.agent/internal/config"
)

// Credential is one API key from a backend's rotation pool.
type Credential struct {
	Label string
	Key   string
}

// CredentialRotator hands out a backend's credentials in strict
// round-robin order. The pool is fixed at construction; the index is
// shared by every caller routing to that backend.
type CredentialRotator struct {
	mu   sync.Mutex
	pool []Credential
	next int
}

// NewCredentialRotator builds a rotator from configured slots. An empty
// pool is valid; Next then fails with ErrNoCredential.
func NewCredentialRotator(slots []config.CredentialSlot) *CredentialRotator {
	pool := make([]Credential, 0, len(slots))
	for _, s := range slots {
		pool = append(pool, Credential{Label: s.Label, Key: s.Key})
	}
	return &CredentialRotator{pool: pool}
}

// Next returns the next credential in rotation. Call k returns
// pool[k mod len(pool)].
func (r *CredentialRotator) Next() (Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pool) == 0 {
		return Credential{}, ErrNoCredential
	}
	cred := r.pool[r.next]
	r.next = (r.next + 1) % len(r.pool)
	return cred, nil
}

// Size reports the pool size.
func (r *CredentialRotator) Size() int {
	return len(r.pool)
}
