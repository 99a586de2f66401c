package eventlog

import (
	"fmt"
	"time"

	"github.com/roach88/stateloop/internal/ir"
)

// tally is a small event-sourced counter used across the package tests.
type tallyEvent struct {
	Kind string
	N    int64
}

type tallyCodec struct{}

func (tallyCodec) Encode(e tallyEvent) (string, ir.Object, error) {
	switch e.Kind {
	case "added":
		return "added", ir.Object{"n": ir.Int(e.N)}, nil
	case "cleared":
		return "cleared", ir.Object{}, nil
	}
	return "", nil, fmt.Errorf("encode %q: %w", e.Kind, ErrUnknownKind)
}

func (tallyCodec) Decode(kind string, payload ir.Object) (tallyEvent, error) {
	switch kind {
	case "added":
		n, err := payload.Integer("n")
		if err != nil {
			return tallyEvent{}, err
		}
		return tallyEvent{Kind: kind, N: n}, nil
	case "cleared":
		return tallyEvent{Kind: kind}, nil
	}
	return tallyEvent{}, fmt.Errorf("decode %q: %w", kind, ErrUnknownKind)
}

type tallyState struct {
	Total int64
	Count int
}

func applyTally(s tallyState, e tallyEvent) tallyState {
	switch e.Kind {
	case "added":
		s.Total += e.N
		s.Count++
	case "cleared":
		s.Total = 0
	}
	return s
}

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// steppingNow returns a clock that advances one second per call.
func steppingNow() NowFunc {
	t := testEpoch
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}
