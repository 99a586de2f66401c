package eventlog

import (
	"context"
	"errors"

	"github.com/roach88/stateloop/internal/ir"
)

// Codec maps domain events to record kinds and payloads. Decode returns an
// error wrapping ErrUnknownKind for a kind it does not recognize.
type Codec[E any] interface {
	Encode(event E) (kind string, payload ir.Object, err error)
	Decode(kind string, payload ir.Object) (E, error)
}

// Fold is the left fold of apply over events starting at empty. apply
// must be pure and total: no clock, no I/O, and its input state is not
// modified.
func Fold[S, E any](apply func(S, E) S, empty S, events []E) S {
	state := empty
	for _, e := range events {
		state = apply(state, e)
	}
	return state
}

// Replay rebuilds state from the whole log. Every record is verified and
// decoded before it is applied; the first integrity failure stops replay
// and is returned with the zero state. The second result is the number
// of records applied. Replay owns the accumulator until it returns, so
// apply may update state in place.
func Replay[S, E any](ctx context.Context, log Log, codec Codec[E], apply func(S, E) S, empty S) (S, int64, error) {
	state := empty
	expected := int64(1)
	err := log.Scan(ctx, func(r Record) error {
		if err := Verify(r, expected); err != nil {
			return err
		}
		e, err := decode(codec, r)
		if err != nil {
			return err
		}
		state = apply(state, e)
		expected++
		return nil
	})
	if err != nil {
		var zero S
		return zero, 0, err
	}
	return state, expected - 1, nil
}

// Events decodes the whole log.
func Events[E any](ctx context.Context, log Log, codec Codec[E]) ([]E, error) {
	var out []E
	expected := int64(1)
	err := log.Scan(ctx, func(r Record) error {
		if err := Verify(r, expected); err != nil {
			return err
		}
		e, err := decode(codec, r)
		if err != nil {
			return err
		}
		out = append(out, e)
		expected++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decode[E any](codec Codec[E], r Record) (E, error) {
	e, err := codec.Decode(r.Kind, r.Payload)
	if err == nil {
		return e, nil
	}
	reason := ReasonMalformed
	if errors.Is(err, ErrUnknownKind) {
		reason = ReasonUnknownKind
	}
	var zero E
	return zero, &IntegrityError{Seq: r.Seq, Reason: reason, Detail: "kind " + r.Kind, Err: err}
}
