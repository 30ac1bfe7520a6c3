package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionViewHidesVotesUntilReveal(t *testing.T) {
	s := newTestSession(t)
	alice, err := s.AddParticipant("Alice", t0)
	require.NoError(t, err)
	bob, err := s.AddParticipant("Bob", t0.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, s.CastVote(alice.ID, "5"))

	view := NewSessionView(s.Clone(), t0.Add(10*time.Minute))
	require.Len(t, view.Participants, 2)
	assert.Equal(t, "Alice", view.Participants[0].Name)
	assert.True(t, view.Participants[0].HasVoted)
	assert.Nil(t, view.Participants[0].Vote)
	assert.False(t, view.Participants[1].HasVoted)
	assert.Nil(t, view.Summary)
	assert.Equal(t, int64(20*60), view.RemainingSeconds)

	require.NoError(t, s.CastVote(bob.ID, "8"))
	require.NoError(t, s.Reveal())
	view = NewSessionView(s.Clone(), t0)
	require.NotNil(t, view.Participants[0].Vote)
	assert.Equal(t, Vote("5"), *view.Participants[0].Vote)
	assert.Equal(t, Vote("8"), *view.Participants[1].Vote)
	require.NotNil(t, view.Summary)
	assert.Equal(t, 2, view.Summary.Votes)
	require.NotNil(t, view.Summary.Average)
	assert.Equal(t, 6.5, *view.Summary.Average)
	assert.False(t, view.Summary.Consensus)
}

func TestSummarize(t *testing.T) {
	s := newTestSession(t)
	var ids []ParticipantID
	for _, name := range []string{"a", "b", "c"} {
		p, err := s.AddParticipant(name, t0)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	require.NoError(t, s.CastVote(ids[0], "3"))
	require.NoError(t, s.CastVote(ids[1], "3"))
	require.NoError(t, s.CastVote(ids[2], NoEstimate))

	sum := Summarize(s.Clone())
	assert.Equal(t, 3, sum.Votes)
	assert.Equal(t, map[Vote]int{"3": 2, "?": 1}, sum.Distribution)
	require.NotNil(t, sum.Average)
	assert.Equal(t, 3.0, *sum.Average)
	assert.True(t, sum.Consensus)
}

func TestSummarizeNoNumericVotes(t *testing.T) {
	s := newTestSession(t)
	p, err := s.AddParticipant("a", t0)
	require.NoError(t, err)
	require.NoError(t, s.CastVote(p.ID, NoEstimate))

	sum := Summarize(s.Clone())
	assert.Nil(t, sum.Average)
	assert.False(t, sum.Consensus)
}
