package engine

import (
	"fmt"

	"github.com/roach88/stateloop/internal/command"
)

// UpdateFunc is the reducer: a pure, total function of (msg, model).
type UpdateFunc[Model, Msg any] func(msg Msg, model Model) (Model, []command.Cmd[Msg])

// Step applies update once, converting a panic into a *DefectError. On a
// defect the input model is returned unchanged.
func Step[Model, Msg any](update UpdateFunc[Model, Msg], msg Msg, model Model) (next Model, cmds []command.Cmd[Msg], err error) {
	defer func() {
		if r := recover(); r != nil {
			next, cmds = model, nil
			if de, ok := r.(*DefectError); ok {
				err = de
				return
			}
			err = &DefectError{
				Code:    ErrCodeUpdatePanic,
				Message: fmt.Sprint(r),
				Msg:     fmt.Sprintf("%T", msg),
			}
		}
	}()
	next, cmds = update(msg, model)
	return next, cmds, nil
}

// initSafely calls init, converting a panic into a *DefectError.
func initSafely[Model, Msg any](init func() (Model, []command.Cmd[Msg])) (model Model, cmds []command.Cmd[Msg], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DefectError{Code: ErrCodeInitPanic, Message: fmt.Sprint(r)}
		}
	}()
	model, cmds = init()
	return model, cmds, nil
}

// Trace is the outcome of Simulate: the final model and the commands each
// step produced, index-aligned with the input messages.
type Trace[Model, Msg any] struct {
	Model    Model
	Commands [][]command.Cmd[Msg]
}

// Simulate folds msgs through update starting from model without running
// any effect. Replaying the same messages from the same model always
// yields the same Trace. It stops at the first defect.
func Simulate[Model, Msg any](update UpdateFunc[Model, Msg], model Model, msgs []Msg) (Trace[Model, Msg], error) {
	trace := Trace[Model, Msg]{Model: model, Commands: make([][]command.Cmd[Msg], 0, len(msgs))}
	for i, msg := range msgs {
		next, cmds, err := Step(update, msg, trace.Model)
		if err != nil {
			if de, ok := err.(*DefectError); ok {
				de.Seq = int64(i + 1)
			}
			return trace, err
		}
		trace.Model = next
		trace.Commands = append(trace.Commands, cmds)
	}
	return trace, nil
}

// SimulateProgram is Simulate starting from p.Init. Init commands are
// reported as the first entry of Commands.
func SimulateProgram[Model, Msg any](p Program[Model, Msg], msgs []Msg) (Trace[Model, Msg], error) {
	model, initCmds, err := initSafely(p.Init)
	if err != nil {
		return Trace[Model, Msg]{Model: model}, err
	}
	trace, err := Simulate(p.Update, model, msgs)
	trace.Commands = append([][]command.Cmd[Msg]{initCmds}, trace.Commands...)
	return trace, err
}
