package params

import (
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/codes"
)

// LockKey places a lock on key at time now. An existing unexpired lock is not
// silently replaced; unlock first. until of 0 means no expiry; bootstrap locks
// always expire with the bootstrap window and require until > 0.
func (s *Store) LockKey(key string, typ LockType, until clock.Millis, lockedBy string, now clock.Millis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getLocked(key); err != nil {
		return err
	}
	if lk, ok := s.locks[key]; ok && (lk.Until == 0 || lk.Until > now) {
		return codes.E("params.lock", codes.ParameterLocked,
			"parameter %q already carries an active %s lock", key, lk.Type)
	}
	if typ == LockBootstrap && until == 0 {
		return codes.E("params.lock", codes.OutOfRange,
			"bootstrap lock on %q requires an expiry", key)
	}

	s.locks[key] = Lock{Type: typ, Until: until, LockedBy: lockedBy, LockedAt: now}
	s.logger.Info("parameter locked",
		zap.String("key", key),
		zap.String("lock_type", typ.String()),
		zap.Int64("until", until))
	return nil
}

// UnlockKey releases the lock on key. Governance locks release only through
// the governance path (caller passes viaGovernance); emergency locks release
// only with the emergency capability (caller passes viaEmergency); bootstrap
// locks release only by expiry.
func (s *Store) UnlockKey(key string, viaGovernance, viaEmergency bool, now clock.Millis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk, ok := s.locks[key]
	if !ok {
		return codes.E("params.unlock", codes.ParameterNotFound, "parameter %q is not locked", key)
	}
	if lk.Until != 0 && lk.Until <= now {
		delete(s.locks, key)
		return nil
	}

	switch lk.Type {
	case LockGovernance:
		if !viaGovernance {
			return codes.E("params.unlock", codes.ParameterDenied,
				"governance lock on %q requires a governance action", key)
		}
	case LockEmergency:
		if !viaEmergency {
			return codes.E("params.unlock", codes.ParameterDenied,
				"emergency lock on %q requires the emergency capability", key)
		}
	case LockBootstrap:
		return codes.E("params.unlock", codes.ParameterLocked,
			"bootstrap lock on %q releases only by expiry", key)
	}

	delete(s.locks, key)
	s.logger.Info("parameter unlocked",
		zap.String("key", key),
		zap.String("lock_type", lk.Type.String()))
	return nil
}

// LockOf returns the active lock on key, if any. Expired locks report absent.
func (s *Store) LockOf(key string, now clock.Millis) (Lock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lk, ok := s.locks[key]
	if !ok {
		return Lock{}, false
	}
	if lk.Until != 0 && lk.Until <= now {
		return Lock{}, false
	}
	return lk, true
}
