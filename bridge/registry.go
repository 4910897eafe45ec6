package bridge

import (
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/rtdebridge/components/arm/universalrobots"
)

// DefaultRegistry holds the targets claimed by bridges in this process unless WithRegistry is
// given.
var DefaultRegistry = NewRegistry()

// Registry tracks which robot targets have a live bridge. Each claim is identified by a session
// id so that a stale release cannot free a newer claim.
//
// Targets are host or host:port strings. A missing port means the realtime port. Host names are
// compared case-insensitively, IP addresses by value, and every loopback address is the same
// target as localhost. Names are not resolved.
type Registry struct {
	mu     sync.Mutex
	claims map[string]uuid.UUID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{claims: map[string]uuid.UUID{}}
}

// targetKey returns the canonical form of target.
func targetKey(target string) string {
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		host, port = target, strconv.Itoa(universalrobots.RealtimePort)
	}
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if ip := net.ParseIP(host); ip != nil {
		host = ip.String()
		if ip.IsLoopback() {
			host = "localhost"
		}
	}
	return net.JoinHostPort(host, port)
}

// Claim reserves target and returns the new session id. It fails with ErrAlreadyConnected if
// target is already claimed.
func (r *Registry) Claim(target string) (uuid.UUID, error) {
	key := targetKey(target)
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.claims[key]; ok {
		return uuid.Nil, errors.Wrapf(ErrAlreadyConnected, "%s is held by session %s", key, session)
	}
	session := uuid.New()
	r.claims[key] = session
	return session, nil
}

// Release frees target if it is still held by session and reports whether it was.
func (r *Registry) Release(target string, session uuid.UUID) bool {
	key := targetKey(target)
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.claims[key]; !ok || cur != session {
		return false
	}
	delete(r.claims, key)
	return true
}

// Session returns the session holding target, if any.
func (r *Registry) Session(target string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.claims[targetKey(target)]
	return session, ok
}
