package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stateloop/internal/ir"
)

// Snapshot renders a result's trace as canonical JSON. Equal runs produce
// identical bytes.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.Array, len(result.Trace))
	for i, e := range result.Trace {
		ops := make(ir.Array, len(e.Ops))
		for j, op := range e.Ops {
			ops[j] = ir.String(op.Name)
		}
		trace[i] = ir.Object{
			"seq":   ir.Int(e.Seq),
			"msg":   ir.String(e.Msg),
			"ops":   ops,
			"items": ir.String(e.Items),
		}
	}
	return ir.MarshalCanonical(ir.Object{
		"scenario": ir.String(name),
		"events":   ir.Int(result.Events),
		"trace":    trace,
	})
}

// RunWithGolden runs scenario and compares its trace with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	data, err := Snapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}
