package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/cache"
)

var (
	// ErrNotFound is returned when the session record does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrReused is returned when a refresh token that is no longer current is presented.
	ErrReused = errors.New("refresh token reused")
	// ErrUnavailable is returned, wrapped, for every cache failure.
	ErrUnavailable = cache.ErrUnavailable
	// ErrInvalidSession is returned for records missing an identifier.
	ErrInvalidSession = errors.New("invalid session")
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "auth"

// Options configures a [Store].
type Options struct {
	// Prefix namespaces keys. Empty selects [DefaultPrefix].
	Prefix string
	// RevocationTTL is how long a revoked-session marker lives. It must cover
	// the access-token lifetime so every access token of the session is rejected.
	RevocationTTL time.Duration
}

// Store persists session state in a [cache.Cache].
type Store struct {
	cache         cache.Cache
	prefix        string
	revocationTTL time.Duration
}

// NewStore creates a session [Store] over c.
func NewStore(c cache.Cache, opts Options) (*Store, error) {
	if c == nil {
		return nil, errors.New("session store requires a cache")
	}
	if opts.RevocationTTL <= 0 {
		return nil, errors.New("session store requires a positive revocation TTL")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		cache:         c,
		prefix:        prefix,
		revocationTTL: opts.RevocationTTL,
	}, nil
}

func (s *Store) recordKey(app, subject, sid string) string {
	return s.prefix + ":s:" + app + ":" + subject + ":" + sid
}

func (s *Store) indexKey(app, subject string) string {
	return s.prefix + ":u:" + app + ":" + subject
}

func (s *Store) blacklistKey(jti string) string {
	return s.prefix + ":bl:" + jti
}

func (s *Store) revokedKey(sid string) string {
	return s.prefix + ":rv:" + sid
}

func validate(sess Session) error {
	if sess.ID == "" || sess.Subject == "" || sess.Application == "" {
		return ErrInvalidSession
	}
	return nil
}

// Create stores a new session whose current refresh token is sess.RefreshID
// and adds it to the subject's index. Both live for ttl.
func (s *Store) Create(ctx context.Context, sess Session, ttl time.Duration) error {
	if err := validate(sess); err != nil {
		return err
	}
	if sess.RefreshID == "" {
		return fmt.Errorf("%w: missing refresh id", ErrInvalidSession)
	}

	if err := s.cache.Set(ctx, s.recordKey(sess.Application, sess.Subject, sess.ID), sess.RefreshID, ttl); err != nil {
		return err
	}
	return s.cache.AddMember(ctx, s.indexKey(sess.Application, sess.Subject), sess.ID, ttl)
}

// Rotate consumes the presented refresh token sess.RefreshID and makes next the
// current one, resetting the record TTL to ttl.
//
// A missing record yields [ErrNotFound]. A record holding a different refresh
// id yields [ErrReused], and the session is revoked before returning.
func (s *Store) Rotate(ctx context.Context, sess Session, next string, ttl time.Duration) error {
	if err := validate(sess); err != nil {
		return err
	}
	if sess.RefreshID == "" || next == "" {
		return fmt.Errorf("%w: missing refresh id", ErrInvalidSession)
	}

	key := s.recordKey(sess.Application, sess.Subject, sess.ID)
	result, err := s.cache.CompareAndSwap(ctx, key, sess.RefreshID, next, ttl)
	if err != nil {
		return err
	}

	switch result {
	case cache.SwapOK:
		// Refresh extends the session; keep the index alive with it.
		return s.cache.AddMember(ctx, s.indexKey(sess.Application, sess.Subject), sess.ID, ttl)
	case cache.SwapMismatch:
		if err := s.Revoke(ctx, sess); err != nil {
			return errors.Join(ErrReused, err)
		}
		return ErrReused
	default:
		return ErrNotFound
	}
}

// Delete removes the session record and its index entry. Deleting a missing
// session is not an error.
func (s *Store) Delete(ctx context.Context, sess Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, s.recordKey(sess.Application, sess.Subject, sess.ID)); err != nil {
		return err
	}
	return s.cache.RemoveMember(ctx, s.indexKey(sess.Application, sess.Subject), sess.ID)
}

// Revoke deletes the session and marks its id revoked so that access tokens
// already issued for it are rejected until they expire.
func (s *Store) Revoke(ctx context.Context, sess Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, s.revokedKey(sess.ID), "1", s.revocationTTL); err != nil {
		return err
	}
	return s.Delete(ctx, sess)
}

// RevokeAll revokes every session of subject at app and returns how many
// live sessions were revoked.
func (s *Store) RevokeAll(ctx context.Context, app, subject string) (int, error) {
	if app == "" || subject == "" {
		return 0, ErrInvalidSession
	}

	ids, err := s.cache.Members(ctx, s.indexKey(app, subject))
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, sid := range ids {
		n, err := s.cache.Exists(ctx, s.recordKey(app, subject, sid))
		if err != nil {
			return revoked, err
		}
		if err := s.Revoke(ctx, Session{ID: sid, Subject: subject, Application: app}); err != nil {
			return revoked, err
		}
		if n > 0 {
			revoked++
		}
	}

	if err := s.cache.Delete(ctx, s.indexKey(app, subject)); err != nil {
		return revoked, err
	}
	return revoked, nil
}

// List returns the ids of live sessions of subject at app. Index entries whose
// record has expired are pruned.
func (s *Store) List(ctx context.Context, app, subject string) ([]string, error) {
	if app == "" || subject == "" {
		return nil, ErrInvalidSession
	}

	indexKey := s.indexKey(app, subject)
	ids, err := s.cache.Members(ctx, indexKey)
	if err != nil {
		return nil, err
	}

	live := make([]string, 0, len(ids))
	for _, sid := range ids {
		n, err := s.cache.Exists(ctx, s.recordKey(app, subject, sid))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if err := s.cache.RemoveMember(ctx, indexKey, sid); err != nil {
				return nil, err
			}
			continue
		}
		live = append(live, sid)
	}
	return live, nil
}

// Blacklist rejects the access token jti for ttl. A non-positive ttl means the
// token has already expired and nothing is written.
func (s *Store) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return fmt.Errorf("%w: missing token id", ErrInvalidSession)
	}
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, s.blacklistKey(jti), "1", ttl)
}

// IsRevoked reports whether the access token jti is blacklisted or its session
// sid has been revoked. It costs one cache round trip.
func (s *Store) IsRevoked(ctx context.Context, jti, sid string) (bool, error) {
	keys := make([]string, 0, 2)
	if jti != "" {
		keys = append(keys, s.blacklistKey(jti))
	}
	if sid != "" {
		keys = append(keys, s.revokedKey(sid))
	}
	if len(keys) == 0 {
		return false, nil
	}

	n, err := s.cache.Exists(ctx, keys...)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Current returns the refresh id currently bound to the session.
func (s *Store) Current(ctx context.Context, app, subject, sid string) (string, error) {
	value, err := s.cache.Get(ctx, s.recordKey(app, subject, sid))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}
