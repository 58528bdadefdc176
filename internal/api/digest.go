package api

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/icholy/digest"
)

// nonceStore tracks the digest nonces this server has issued. A
// credential presented with a nonce we never handed out, or one past
// its TTL, is answered with a fresh challenge.
type nonceStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	nonces map[string]time.Time
}

func newNonceStore(ttl time.Duration) *nonceStore {
	return &nonceStore{ttl: ttl, nonces: make(map[string]time.Time)}
}

func (ns *nonceStore) issue() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure is fatal
		panic("generate nonce: " + err.Error())
	}
	nonce := hex.EncodeToString(b)
	ns.mu.Lock()
	ns.nonces[nonce] = time.Now().Add(ns.ttl)
	ns.mu.Unlock()
	return nonce
}

func (ns *nonceStore) valid(nonce string) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	exp, ok := ns.nonces[nonce]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(ns.nonces, nonce)
		return false
	}
	return true
}

// sweep drops expired nonces and reports how many were removed.
func (ns *nonceStore) sweep() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	now := time.Now()
	n := 0
	for nonce, exp := range ns.nonces {
		if now.After(exp) {
			delete(ns.nonces, nonce)
			n++
		}
	}
	return n
}

// challenge answers with a fresh digest challenge. stale tells a
// well-behaved client that its credentials were fine but the nonce was
// not, so it can retry without re-prompting for a password.
func (s *Server) challenge(w http.ResponseWriter, stale bool) {
	chal := &digest.Challenge{
		Realm:     s.config.Realm,
		Nonce:     s.nonces.issue(),
		Algorithm: "MD5",
		QOP:       []string{"auth"},
		Stale:     stale,
	}
	w.Header().Set("WWW-Authenticate", chal.String())
	writeError(w, http.StatusUnauthorized, "authentication required")
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// verifyDigest checks submitted credentials against a stored HA1 hash.
// RFC 2617: response = MD5(HA1:nonce:nc:cnonce:qop:HA2) with qop=auth,
// or MD5(HA1:nonce:HA2) for legacy clients, where HA2 = MD5(method:uri).
func verifyDigest(cred *digest.Credentials, method, ha1 string) bool {
	ha2 := md5hex(method + ":" + cred.URI)
	var expected string
	switch cred.QOP {
	case "":
		expected = md5hex(ha1 + ":" + cred.Nonce + ":" + ha2)
	case "auth":
		expected = md5hex(fmt.Sprintf("%s:%s:%08x:%s:%s:%s",
			ha1, cred.Nonce, cred.Nc, cred.Cnonce, cred.QOP, ha2))
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(cred.Response)) == 1
}

// requireDigest wraps a handler with HTTP digest authentication backed
// by the stb_users table. The authenticated username is recorded in the
// context and in every row the request writes.
func (s *Server) requireDigest(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.challenge(w, false)
			return
		}

		cred, err := digest.ParseCredentials(header)
		if err != nil || cred.Realm != s.config.Realm {
			s.challenge(w, false)
			return
		}
		if !s.nonces.valid(cred.Nonce) {
			s.challenge(w, true)
			return
		}

		ha1, err := s.store.LookupHA1(cred.Username, cred.Realm)
		if err != nil {
			logFor(r.Context()).Error("lookup user", "err", err)
			writeError(w, http.StatusInternalServerError, "authentication backend failure")
			return
		}
		if ha1 == "" || !verifyDigest(cred, r.Method, ha1) {
			logFor(r.Context()).Warn("digest auth failed", "user", cred.Username)
			s.challenge(w, false)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyAuthUser, cred.Username)
		ctx = context.WithValue(ctx, ctxKeyLogger, logFor(ctx).With("user", cred.Username))
		handler(w, r.WithContext(ctx))
	}
}
