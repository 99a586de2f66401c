package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stateloop/internal/ir"
)

func tallyHistory() []tallyEvent {
	return []tallyEvent{
		{Kind: "added", N: 3},
		{Kind: "added", N: 4},
		{Kind: "cleared"},
		{Kind: "added", N: 10},
		{Kind: "added", N: -2},
	}
}

func TestReplay_MatchesLiveApplication(t *testing.T) {
	ctx := context.Background()
	j := NewJournal[tallyEvent](NewMemory(steppingNow()), tallyCodec{})

	live := tallyState{}
	for _, e := range tallyHistory() {
		_, err := j.Append(ctx, e)
		require.NoError(t, err)
		live = applyTally(live, e)
	}

	replayed, n, err := Replay(ctx, j.Log(), j.Codec(), applyTally, tallyState{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, live, replayed)

	again, _, err := Replay(ctx, j.Log(), j.Codec(), applyTally, tallyState{})
	require.NoError(t, err)
	assert.Equal(t, replayed, again)
}

func TestFold_PrefixIdempotence(t *testing.T) {
	events := tallyHistory()
	for n := 1; n <= len(events); n++ {
		whole := Fold(applyTally, tallyState{}, events[:n])
		stepped := applyTally(Fold(applyTally, tallyState{}, events[:n-1]), events[n-1])
		assert.Equal(t, whole, stepped, "prefix %d", n)
	}
}

func TestFold_Empty(t *testing.T) {
	assert.Equal(t, tallyState{}, Fold(applyTally, tallyState{}, nil))
}

func TestReplay_StopsOnUnknownKind(t *testing.T) {
	ctx := context.Background()
	log := NewMemory(nil)
	_, err := log.Append(ctx, "added", ir.Object{"n": ir.Int(1)})
	require.NoError(t, err)
	_, err = log.Append(ctx, "renamed", ir.Object{})
	require.NoError(t, err)
	_, err = log.Append(ctx, "added", ir.Object{"n": ir.Int(1)})
	require.NoError(t, err)

	applied := 0
	countingApply := func(s tallyState, e tallyEvent) tallyState {
		applied++
		return applyTally(s, e)
	}

	state, n, err := Replay(ctx, log, tallyCodec{}, countingApply, tallyState{})
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ReasonUnknownKind, ie.Reason)
	assert.Equal(t, int64(2), ie.Seq)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, 1, applied, "nothing after the bad record is applied")
	assert.Zero(t, n)
	assert.Equal(t, tallyState{}, state)
}

func TestReplay_StopsOnMalformedPayload(t *testing.T) {
	ctx := context.Background()
	log := NewMemory(nil)
	_, err := log.Append(ctx, "added", ir.Object{"n": ir.String("two")})
	require.NoError(t, err)

	_, _, err = Replay(ctx, log, tallyCodec{}, applyTally, tallyState{})
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ReasonMalformed, ie.Reason)
}

func TestReplay_StopsOnGap(t *testing.T) {
	ctx := context.Background()
	log := NewMemory(nil)
	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, "added", ir.Object{"n": ir.Int(1)})
		require.NoError(t, err)
	}
	log.records = append(log.records[:1], log.records[2:]...)

	_, _, err := Replay(ctx, log, tallyCodec{}, applyTally, tallyState{})
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ReasonGap, ie.Reason)
	assert.Equal(t, int64(3), ie.Seq)
}

func TestReplay_StopsOnChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	log := NewMemory(nil)
	_, err := log.Append(ctx, "added", ir.Object{"n": ir.Int(1)})
	require.NoError(t, err)
	log.records[0].Payload = ir.Object{"n": ir.Int(1000)}

	_, _, err = Replay(ctx, log, tallyCodec{}, applyTally, tallyState{})
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ReasonChecksumMismatch, ie.Reason)

	_, err = ReadAll(ctx, log)
	assert.True(t, IsIntegrityError(err))
}

func TestEvents_DecodesInOrder(t *testing.T) {
	ctx := context.Background()
	j := NewJournal[tallyEvent](NewMemory(nil), tallyCodec{})
	for _, e := range tallyHistory() {
		_, err := j.Append(ctx, e)
		require.NoError(t, err)
	}

	events, err := j.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, tallyHistory(), events)
}
