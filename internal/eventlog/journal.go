package eventlog

import (
	"context"
	"fmt"

	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/ir"
	"github.com/roach88/stateloop/internal/remote"
	"github.com/roach88/stateloop/internal/scheduler"
)

// OpAppend is the op name executed by Journal.Executor.
const OpAppend = "eventlog.append"

// AppendOp describes appending one encoded event. Reducers emit it inside
// a command; the append happens when the scheduler runs it.
func AppendOp(kind string, payload ir.Object) command.Op {
	if payload == nil {
		payload = ir.Object{}
	}
	return command.Op{
		Name: OpAppend,
		Args: ir.Object{
			"kind":    ir.String(kind),
			"payload": payload,
		},
	}
}

// EncodeOp encodes event with codec and wraps it in an AppendOp.
func EncodeOp[E any](codec Codec[E], event E) (command.Op, error) {
	kind, payload, err := codec.Encode(event)
	if err != nil {
		return command.Op{}, fmt.Errorf("encode event: %w", err)
	}
	return AppendOp(kind, payload), nil
}

// Journal is a Log paired with the codec of its events.
type Journal[E any] struct {
	log   Log
	codec Codec[E]
}

// NewJournal creates a journal over log.
func NewJournal[E any](log Log, codec Codec[E]) *Journal[E] {
	return &Journal[E]{log: log, codec: codec}
}

// Log returns the underlying log.
func (j *Journal[E]) Log() Log {
	return j.log
}

// Codec returns the event codec.
func (j *Journal[E]) Codec() Codec[E] {
	return j.codec
}

// Append encodes and appends event.
func (j *Journal[E]) Append(ctx context.Context, event E) (Record, error) {
	kind, payload, err := j.codec.Encode(event)
	if err != nil {
		return Record{}, appendFailed("encode", err)
	}
	return j.log.Append(ctx, kind, payload)
}

// Events decodes every record in the journal.
func (j *Journal[E]) Events(ctx context.Context) ([]E, error) {
	return Events(ctx, j.log, j.codec)
}

// Executor returns the executor for OpAppend. A payload the codec cannot
// decode is rejected before it reaches the log. On success the result is
// the committed Record.
func (j *Journal[E]) Executor() scheduler.Executor {
	return scheduler.ExecutorFunc(func(ctx context.Context, op command.Op) (any, error) {
		kind, err := op.Args.Str("kind")
		if err != nil {
			return nil, remote.Errorf(remote.CodeValidation, "%s: %v", OpAppend, err)
		}
		payload, ok := op.Args["payload"].(ir.Object)
		if !ok {
			return nil, remote.Errorf(remote.CodeValidation, "%s: payload must be an object", OpAppend)
		}
		if _, err := j.codec.Decode(kind, payload); err != nil {
			return nil, remote.Errorf(remote.CodeValidation, "%s: %v", OpAppend, err)
		}

		rec, err := j.log.Append(ctx, kind, payload)
		if err != nil {
			return nil, appendInfo(err)
		}
		return rec, nil
	})
}
