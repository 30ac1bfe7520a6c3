package realtime

import (
	"time"

	"github.com/kiko-poker/backend/internal/models"
)

// FrameType discriminates protocol frames on the wire.
type FrameType string

// Client -> server.
const (
	FrameJoin      FrameType = "join"
	FrameLeave     FrameType = "leave"
	FrameCastVote  FrameType = "cast_vote"
	FrameReveal    FrameType = "reveal"
	FrameNewRound  FrameType = "new_round"
	FrameHeartbeat FrameType = "heartbeat"
)

// Server -> client. Heartbeat is shared with the client direction.
const (
	FrameSnapshot FrameType = "snapshot"
	FrameError    FrameType = "error"
)

// ClientFrame is any frame a participant sends. Only the fields of its type are set.
type ClientFrame struct {
	Type            FrameType   `json:"type"`
	ParticipantName string      `json:"participant_name,omitempty"`
	Value           models.Vote `json:"value,omitempty"`
	Topic           string      `json:"topic,omitempty"`
}

// ServerFrame is any frame the server sends.
type ServerFrame struct {
	Type FrameType `json:"type"`
	// Event names the mutation behind a snapshot; empty on the initial snapshot.
	Event         models.EventKind     `json:"event,omitempty"`
	Session       *models.SessionView  `json:"session,omitempty"`
	ParticipantID models.ParticipantID `json:"participant_id,omitempty"`
	Error         *ErrorBody           `json:"error,omitempty"`
}

// ErrorBody is the structured failure sent to the one connection that caused it.
type ErrorBody struct {
	Kind    models.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

func snapshotFrame(kind models.EventKind, s models.Session, now time.Time) ServerFrame {
	view := models.NewSessionView(s, now)
	return ServerFrame{Type: FrameSnapshot, Event: kind, Session: &view}
}

func errorFrame(err error) ServerFrame {
	return ServerFrame{Type: FrameError, Error: &ErrorBody{Kind: models.KindOf(err), Message: err.Error()}}
}

var heartbeatFrame = ServerFrame{Type: FrameHeartbeat}
