package models

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// sessionIDBytes is the entropy behind a session id (128 bits).
const sessionIDBytes = 16

// SessionID identifies a planning session. It is the only credential needed to join.
type SessionID string

// ParticipantID identifies a member of one session, independent of any connection.
type ParticipantID string

// NewSessionID returns a random base58 session id. The base58 alphabet has no 0, O, I or l,
// so ids can be read aloud or copied by hand.
func NewSessionID() SessionID {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("session id: read random: %v", err))
	}
	return SessionID(base58.Encode(b))
}

// NewParticipantID returns a random participant id.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

func (id SessionID) String() string     { return string(id) }
func (id ParticipantID) String() string { return string(id) }
