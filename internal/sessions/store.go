package sessions

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kiko-poker/backend/internal/models"
)

const (
	// DefaultMaxDuration caps how long a session may be requested for.
	DefaultMaxDuration = 24 * time.Hour
	// DefaultExpiredGrace is how long an expired session stays readable before it is purged.
	DefaultExpiredGrace = 10 * time.Minute
)

// Publisher receives every event the store produces. Publish is called while the
// session's lock is held, so it must not block.
type Publisher interface {
	Publish(ev models.Event)
	// Close drops everything subscribed to a purged session.
	Close(sessionID models.SessionID)
}

// Options configures a Store. Zero values fall back to defaults.
type Options struct {
	MaxDuration  time.Duration
	ExpiredGrace time.Duration
	Scale        models.Scale
	Now          func() time.Time
}

// SweepResult counts what one SweepExpired pass did.
type SweepResult struct {
	Expired int
	Purged  int
}

// Store owns all live sessions. The map lock only covers inserting, finding and
// deleting entries; each entry has its own lock for everything else.
type Store struct {
	opts   Options
	pub    Publisher
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[models.SessionID]*entry
}

type entry struct {
	mu      sync.Mutex
	session *models.Session
	purged  bool
}

// NewStore creates an empty store. pub may be nil.
func NewStore(opts Options, pub Publisher, logger *zap.Logger) *Store {
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.ExpiredGrace <= 0 {
		opts.ExpiredGrace = DefaultExpiredGrace
	}
	if len(opts.Scale) == 0 {
		opts.Scale = models.DefaultScale
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		opts:     opts,
		pub:      pub,
		logger:   logger,
		sessions: make(map[models.SessionID]*entry),
	}
}

// Scale returns the deck votes are validated against.
func (s *Store) Scale() models.Scale { return s.opts.Scale }

// MaxDuration is the longest lifetime Create accepts.
func (s *Store) MaxDuration() time.Duration { return s.opts.MaxDuration }

// Now is the store's clock.
func (s *Store) Now() time.Time { return s.opts.Now() }

// Create allocates a new open session that expires after duration.
func (s *Store) Create(name string, duration time.Duration) (models.Session, error) {
	if duration > s.opts.MaxDuration {
		return models.Session{}, fmt.Errorf("duration %s exceeds maximum %s: %w", duration, s.opts.MaxDuration, models.ErrInvalidArgument)
	}
	now := s.opts.Now()
	sess, err := models.NewSession(name, now, duration)
	if err != nil {
		return models.Session{}, err
	}
	e := &entry{session: sess}
	e.mu.Lock()
	defer e.mu.Unlock()

	s.mu.Lock()
	s.sessions[sess.ID] = e
	s.mu.Unlock()

	snap := sess.Clone()
	s.publish(models.EventCreated, snap, now)
	s.logger.Info("session created",
		zap.String("session_id", sess.ID.String()),
		zap.String("name", sess.Name),
		zap.Time("expires_at", sess.ExpiresAt),
	)
	return snap, nil
}

// Join adds a participant with no vote and returns its id with the resulting snapshot.
func (s *Store) Join(id models.SessionID, participantName string) (models.ParticipantID, models.Session, error) {
	var pid models.ParticipantID
	snap, err := s.mutate(id, models.EventParticipantJoined, func(sess *models.Session, now time.Time) (bool, error) {
		p, err := sess.AddParticipant(participantName, now)
		if err != nil {
			return false, err
		}
		pid = p.ID
		return true, nil
	})
	if err != nil {
		return "", models.Session{}, err
	}
	return pid, snap, nil
}

// Leave removes a participant. Leaving twice, leaving as a stranger, or leaving an
// expired session changes nothing and is not an error.
func (s *Store) Leave(id models.SessionID, participantID models.ParticipantID) (models.Session, error) {
	return s.mutate(id, models.EventParticipantLeft, func(sess *models.Session, _ time.Time) (bool, error) {
		if sess.Phase == models.PhaseExpired {
			return false, nil
		}
		return sess.RemoveParticipant(participantID), nil
	})
}

// CastVote replaces the participant's vote. Only allowed while the session is open.
func (s *Store) CastVote(id models.SessionID, participantID models.ParticipantID, vote models.Vote) (models.Session, error) {
	return s.mutate(id, models.EventVoteCast, func(sess *models.Session, _ time.Time) (bool, error) {
		if sess.Phase == models.PhaseOpen && !s.opts.Scale.Contains(vote) {
			return false, fmt.Errorf("vote %q is not on the scale %s: %w", vote, s.opts.Scale, models.ErrInvalidArgument)
		}
		if err := sess.CastVote(participantID, vote); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Reveal shows every vote. Only allowed while the session is open.
func (s *Store) Reveal(id models.SessionID) (models.Session, error) {
	return s.mutate(id, models.EventRevealed, func(sess *models.Session, _ time.Time) (bool, error) {
		return true, sess.Reveal()
	})
}

// NewRound clears all votes, sets the topic and re-opens voting.
func (s *Store) NewRound(id models.SessionID, topic string) (models.Session, error) {
	return s.mutate(id, models.EventNewRound, func(sess *models.Session, _ time.Time) (bool, error) {
		return true, sess.NewRound(topic)
	})
}

// Close ends the session ahead of its expiry time.
func (s *Store) Close(id models.SessionID) (models.Session, error) {
	return s.mutate(id, models.EventClosed, func(sess *models.Session, now time.Time) (bool, error) {
		return true, sess.Expire(now)
	})
}

// Snapshot returns a private copy of the session.
func (s *Store) Snapshot(id models.SessionID) (models.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return models.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.purged {
		return models.Session{}, notFound(id)
	}
	s.expireIfOverdue(e, s.opts.Now())
	return e.session.Clone(), nil
}

// Count is the number of sessions in memory, expired ones included until purged.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepExpired expires overdue sessions and purges those that have been expired
// for longer than the grace window. Running it twice in a row is harmless.
func (s *Store) SweepExpired() SweepResult {
	now := s.opts.Now()

	s.mu.RLock()
	entries := make(map[models.SessionID]*entry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	s.mu.RUnlock()

	var (
		res    SweepResult
		purged []models.SessionID
	)
	for id, e := range entries {
		e.mu.Lock()
		switch {
		case e.purged:
		case s.expireIfOverdue(e, now):
			res.Expired++
		case e.session.Phase == models.PhaseExpired && e.session.ExpiredAt != nil &&
			now.Sub(*e.session.ExpiredAt) >= s.opts.ExpiredGrace:
			e.purged = true
			purged = append(purged, id)
		}
		e.mu.Unlock()
	}

	if len(purged) > 0 {
		s.mu.Lock()
		for _, id := range purged {
			if s.sessions[id] == entries[id] {
				delete(s.sessions, id)
			}
		}
		s.mu.Unlock()
		for _, id := range purged {
			if s.pub != nil {
				s.pub.Close(id)
			}
			s.logger.Info("session purged", zap.String("session_id", id.String()))
		}
		res.Purged = len(purged)
	}
	return res
}

// mutate runs fn under the session's lock. When fn reports a change the version is
// bumped and exactly one event is published before the lock is released.
func (s *Store) mutate(id models.SessionID, kind models.EventKind, fn func(*models.Session, time.Time) (bool, error)) (models.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return models.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.purged {
		return models.Session{}, notFound(id)
	}
	now := s.opts.Now()
	s.expireIfOverdue(e, now)

	changed, err := fn(e.session, now)
	if err != nil {
		return models.Session{}, err
	}
	if changed {
		e.session.Version++
	}
	snap := e.session.Clone()
	if changed {
		s.publish(kind, snap, now)
	}
	return snap, nil
}

// expireIfOverdue must be called with e.mu held.
func (s *Store) expireIfOverdue(e *entry, now time.Time) bool {
	if !e.session.Overdue(now) {
		return false
	}
	if err := e.session.Expire(now); err != nil {
		return false
	}
	e.session.Version++
	s.publish(models.EventExpired, e.session.Clone(), now)
	s.logger.Info("session expired", zap.String("session_id", e.session.ID.String()))
	return true
}

func (s *Store) publish(kind models.EventKind, snap models.Session, now time.Time) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(models.Event{SessionID: snap.ID, Kind: kind, Session: snap, At: now})
}

func (s *Store) lookup(id models.SessionID) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return e, nil
}

func notFound(id models.SessionID) error {
	return fmt.Errorf("session %s: %w", id, models.ErrNotFound)
}
