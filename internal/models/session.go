package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxSessionNameLen     = 120
	MaxParticipantNameLen = 64
	MaxTopicLen           = 500
)

// Phase is the session-level state machine position.
type Phase string

const (
	PhaseOpen     Phase = "open"
	PhaseRevealed Phase = "revealed"
	PhaseExpired  Phase = "expired"
)

// Participant is one member of a session. Vote is nil until a card is played.
type Participant struct {
	ID       ParticipantID `json:"id"`
	Name     string        `json:"name"`
	Vote     *Vote         `json:"vote,omitempty"`
	JoinedAt time.Time     `json:"joined_at"`
}

// Session is one planning poker session and everything it owns.
// A Session value returned by the store is a private copy.
type Session struct {
	ID           SessionID                      `json:"id"`
	Name         string                         `json:"name"`
	Topic        string                         `json:"topic"`
	Phase        Phase                          `json:"phase"`
	Version      uint64                         `json:"version"`
	CreatedAt    time.Time                      `json:"created_at"`
	ExpiresAt    time.Time                      `json:"expires_at"`
	ExpiredAt    *time.Time                     `json:"expired_at,omitempty"`
	Participants map[ParticipantID]*Participant `json:"participants"`
}

// NewSession builds an open session that expires duration after now.
func NewSession(name string, now time.Time, duration time.Duration) (*Session, error) {
	name, err := cleanText("session name", name, MaxSessionNameLen, true)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive: %w", ErrInvalidArgument)
	}
	return &Session{
		ID:           NewSessionID(),
		Name:         name,
		Phase:        PhaseOpen,
		Version:      1,
		CreatedAt:    now,
		ExpiresAt:    now.Add(duration),
		Participants: make(map[ParticipantID]*Participant),
	}, nil
}

// Clone returns a deep copy that shares nothing with s.
func (s *Session) Clone() Session {
	out := *s
	if s.ExpiredAt != nil {
		t := *s.ExpiredAt
		out.ExpiredAt = &t
	}
	out.Participants = make(map[ParticipantID]*Participant, len(s.Participants))
	for id, p := range s.Participants {
		cp := *p
		if p.Vote != nil {
			v := *p.Vote
			cp.Vote = &v
		}
		out.Participants[id] = &cp
	}
	return out
}

// Overdue reports whether the wall clock has passed expires_at without the session being expired yet.
func (s *Session) Overdue(now time.Time) bool {
	return s.Phase != PhaseExpired && !now.Before(s.ExpiresAt)
}

// Remaining is the time left before expiry, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.Phase == PhaseExpired || !now.Before(s.ExpiresAt) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// AddParticipant inserts a new member without a vote.
func (s *Session) AddParticipant(name string, now time.Time) (*Participant, error) {
	if s.Phase == PhaseExpired {
		return nil, fmt.Errorf("join session %s: %w", s.ID, ErrExpired)
	}
	name, err := cleanText("participant name", name, MaxParticipantNameLen, true)
	if err != nil {
		return nil, err
	}
	p := &Participant{ID: NewParticipantID(), Name: name, JoinedAt: now}
	s.Participants[p.ID] = p
	return p, nil
}

// RemoveParticipant deletes a member and, with it, their vote. It reports whether anything changed.
func (s *Session) RemoveParticipant(id ParticipantID) bool {
	if _, ok := s.Participants[id]; !ok {
		return false
	}
	delete(s.Participants, id)
	return true
}

// CastVote replaces the participant's vote. The caller validates v against the scale.
func (s *Session) CastVote(id ParticipantID, v Vote) error {
	if err := s.requirePhase(PhaseOpen); err != nil {
		return err
	}
	p, ok := s.Participants[id]
	if !ok {
		return fmt.Errorf("participant %s: %w", id, ErrNotFound)
	}
	p.Vote = &v
	return nil
}

// Reveal makes the votes visible. Only allowed while open.
func (s *Session) Reveal() error {
	if err := s.requirePhase(PhaseOpen); err != nil {
		return err
	}
	s.Phase = PhaseRevealed
	return nil
}

// NewRound clears every vote, sets the topic and re-opens voting.
func (s *Session) NewRound(topic string) error {
	if err := s.requirePhase(PhaseOpen, PhaseRevealed); err != nil {
		return err
	}
	topic, err := cleanText("topic", topic, MaxTopicLen, false)
	if err != nil {
		return err
	}
	for _, p := range s.Participants {
		p.Vote = nil
	}
	s.Topic = topic
	s.Phase = PhaseOpen
	return nil
}

// Expire moves the session into its terminal phase.
func (s *Session) Expire(now time.Time) error {
	if s.Phase == PhaseExpired {
		return fmt.Errorf("session %s: %w", s.ID, ErrExpired)
	}
	s.Phase = PhaseExpired
	s.ExpiredAt = &now
	return nil
}

func (s *Session) requirePhase(allowed ...Phase) error {
	if s.Phase == PhaseExpired {
		return fmt.Errorf("session %s: %w", s.ID, ErrExpired)
	}
	for _, ph := range allowed {
		if s.Phase == ph {
			return nil
		}
	}
	return fmt.Errorf("session %s is %s: %w", s.ID, s.Phase, ErrInvalidPhase)
}

func cleanText(field, v string, max int, required bool) (string, error) {
	v = strings.TrimSpace(v)
	if required && v == "" {
		return "", fmt.Errorf("%s is required: %w", field, ErrInvalidArgument)
	}
	if utf8.RuneCountInString(v) > max {
		return "", fmt.Errorf("%s longer than %d characters: %w", field, max, ErrInvalidArgument)
	}
	return v, nil
}
