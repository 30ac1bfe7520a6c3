package models

import (
	"math"
	"sort"
	"time"
)

// SessionView is the client-facing projection of a session. Vote values stay hidden until reveal.
type SessionView struct {
	ID               SessionID         `json:"id"`
	Name             string            `json:"name"`
	Topic            string            `json:"topic"`
	Phase            Phase             `json:"phase"`
	Version          uint64            `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
	RemainingSeconds int64             `json:"remaining_seconds"`
	Participants     []ParticipantView `json:"participants"`
	Summary          *Summary          `json:"summary,omitempty"`
}

// ParticipantView shows whether a participant voted, and the card only once revealed.
type ParticipantView struct {
	ID       ParticipantID `json:"id"`
	Name     string        `json:"name"`
	HasVoted bool          `json:"has_voted"`
	Vote     *Vote         `json:"vote,omitempty"`
	JoinedAt time.Time     `json:"joined_at"`
}

// Summary describes revealed votes.
type Summary struct {
	Votes        int          `json:"votes"`
	Average      *float64     `json:"average,omitempty"`
	Distribution map[Vote]int `json:"distribution"`
	Consensus    bool         `json:"consensus"`
}

// NewSessionView projects s for clients at time now.
func NewSessionView(s Session, now time.Time) SessionView {
	// Only an explicit reveal shows cards; an expired session keeps them hidden.
	visible := s.Phase == PhaseRevealed
	view := SessionView{
		ID:               s.ID,
		Name:             s.Name,
		Topic:            s.Topic,
		Phase:            s.Phase,
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		ExpiresAt:        s.ExpiresAt,
		RemainingSeconds: int64(math.Ceil(s.Remaining(now).Seconds())),
		Participants:     make([]ParticipantView, 0, len(s.Participants)),
	}
	for _, p := range s.Participants {
		pv := ParticipantView{ID: p.ID, Name: p.Name, HasVoted: p.Vote != nil, JoinedAt: p.JoinedAt}
		if visible && p.Vote != nil {
			v := *p.Vote
			pv.Vote = &v
		}
		view.Participants = append(view.Participants, pv)
	}
	sort.Slice(view.Participants, func(i, j int) bool {
		a, b := view.Participants[i], view.Participants[j]
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})
	if visible {
		view.Summary = Summarize(s)
	}
	return view
}

// Summarize computes vote statistics over the session's current votes.
func Summarize(s Session) *Summary {
	sum := &Summary{Distribution: make(map[Vote]int)}
	var (
		total    float64
		numeric  int
		first    float64
		allEqual = true
	)
	for _, p := range s.Participants {
		if p.Vote == nil {
			continue
		}
		sum.Votes++
		sum.Distribution[*p.Vote]++
		n, ok := p.Vote.Numeric()
		if !ok {
			continue
		}
		if numeric == 0 {
			first = n
		} else if n != first {
			allEqual = false
		}
		total += n
		numeric++
	}
	if numeric > 0 {
		avg := math.Round(total/float64(numeric)*100) / 100
		sum.Average = &avg
	}
	sum.Consensus = numeric >= 2 && allEqual
	return sum
}
