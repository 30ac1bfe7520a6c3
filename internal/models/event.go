package models

import "time"

// EventKind says which mutation produced an event.
type EventKind string

const (
	EventCreated           EventKind = "created"
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeft   EventKind = "participant_left"
	EventVoteCast          EventKind = "vote_cast"
	EventRevealed          EventKind = "revealed"
	EventNewRound          EventKind = "new_round"
	EventExpired           EventKind = "expired"
	EventClosed            EventKind = "closed"
)

// Event carries the full session snapshot that resulted from one mutation.
type Event struct {
	SessionID SessionID `json:"session_id"`
	Kind      EventKind `json:"kind"`
	Session   Session   `json:"session"`
	At        time.Time `json:"at"`
}

// Version is the snapshot version the event carries.
func (e Event) Version() uint64 { return e.Session.Version }
