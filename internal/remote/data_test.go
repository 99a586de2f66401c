package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStates = []State{StateNotAsked, StateLoading, StateSuccess, StateFailure}

func dataIn[T any](s State, v T) Data[T] {
	switch s {
	case StateLoading:
		return Loading[T]()
	case StateSuccess:
		return Succeed(v)
	case StateFailure:
		return Fail[T](NewError(CodeError, "boom"))
	default:
		return NotAsked[T]()
	}
}

func TestZeroValueIsNotAsked(t *testing.T) {
	var d Data[int]
	assert.True(t, d.IsNotAsked())
	assert.Equal(t, NotAsked[int](), d)
}

func TestCanTransitionGraph(t *testing.T) {
	allowed := map[[2]State]bool{
		{StateNotAsked, StateLoading}: true,
		{StateLoading, StateLoading}:  true,
		{StateSuccess, StateLoading}:  true,
		{StateFailure, StateLoading}:  true,
		{StateLoading, StateSuccess}:  true,
		{StateLoading, StateFailure}:  true,
	}

	for _, from := range allStates {
		for _, to := range allStates {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				assert.Equal(t, allowed[[2]State{from, to}], CanTransition(from, to))
			})
		}
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	d := NotAsked[[]string]().Request()
	require.True(t, d.IsLoading())

	d, err := d.Resolve([]string{"a", "b"})
	require.NoError(t, err)
	v, ok := d.Value()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v)

	d = d.Request()
	assert.True(t, d.IsLoading(), "success returns to loading on a new request")

	d, err = d.Reject(NewError("network", "network down"))
	require.NoError(t, err)
	e, ok := d.Err()
	require.True(t, ok)
	assert.Equal(t, "network down", e.Message)

	assert.True(t, d.Request().IsLoading(), "failure returns to loading on a new request")
	assert.True(t, d.Reset().IsNotAsked())
}

func TestIllegalTransitionsFail(t *testing.T) {
	for _, s := range []State{StateNotAsked, StateSuccess, StateFailure} {
		t.Run(s.String(), func(t *testing.T) {
			d := dataIn(s, 1)

			got, err := d.Resolve(2)
			require.Error(t, err)
			assert.True(t, IsTransitionError(err))
			assert.Equal(t, d, got, "value unchanged on illegal transition")

			_, err = d.Reject(NewError(CodeError, "x"))
			require.Error(t, err)
			var te *TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, s, te.From)
			assert.Equal(t, StateFailure, te.To)
		})
	}
}

func TestRejectRequiresPayload(t *testing.T) {
	_, err := Loading[int]().Reject(ErrorInfo{})
	require.Error(t, err)
	assert.False(t, IsTransitionError(err))
}

func TestFailPanicsWithoutPayload(t *testing.T) {
	assert.Panics(t, func() { Fail[int](ErrorInfo{}) })
	assert.NotPanics(t, func() { Fail[int](ErrorInfo{Message: "only message"}) })
}

func TestSettle(t *testing.T) {
	d, err := Loading[int]().Settle(Ok(3))
	require.NoError(t, err)
	assert.Equal(t, Succeed(3), d)

	d, err = Loading[int]().Settle(Err[int](NewError("x", "y")))
	require.NoError(t, err)
	assert.Equal(t, Fail[int](NewError("x", "y")), d)

	_, err = NotAsked[int]().Settle(Ok(3))
	assert.True(t, IsTransitionError(err))
}

func TestMatchCoversEveryState(t *testing.T) {
	cases := Cases[int, string]{
		NotAsked: func() string { return "idle" },
		Loading:  func() string { return "spinner" },
		Success:  func(v int) string { return "got" },
		Failure:  func(e ErrorInfo) string { return "err " + e.Message },
	}

	assert.Equal(t, "idle", Match(NotAsked[int](), cases))
	assert.Equal(t, "spinner", Match(Loading[int](), cases))
	assert.Equal(t, "got", Match(Succeed(1), cases))
	assert.Equal(t, "err boom", Match(Fail[int](NewError(CodeError, "boom")), cases))
}

func TestMatchPanicsOnMissingCase(t *testing.T) {
	partial := Cases[int, string]{
		Success: func(int) string { return "" },
	}
	// Panics even though the value is in a handled state.
	assert.Panics(t, func() { Match(Succeed(1), partial) })
}

func TestMapPreservesState(t *testing.T) {
	double := func(v int) int { return v * 2 }

	assert.Equal(t, Succeed(4), Map(Succeed(2), double))
	assert.Equal(t, NotAsked[int](), Map(NotAsked[int](), double))
	assert.Equal(t, Loading[int](), Map(Loading[int](), double))
	assert.Equal(t, Fail[int](NewError("c", "m")), Map(Fail[int](NewError("c", "m")), double))

	asLen := Map(Succeed("abc"), func(s string) int { return len(s) })
	assert.Equal(t, Succeed(3), asLen)
}

func TestWithDefault(t *testing.T) {
	for _, s := range allStates {
		want := -1
		if s == StateSuccess {
			want = 7
		}
		assert.Equal(t, want, dataIn(s, 7).WithDefault(-1), s.String())
	}
}

func TestMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		data Data[[]int]
		want string
	}{
		{"not asked", NotAsked[[]int](), `{"state":"not_asked"}`},
		{"loading", Loading[[]int](), `{"state":"loading"}`},
		{"success", Succeed([]int{1, 2}), `{"state":"success","value":[1,2]}`},
		{"empty success", Succeed([]int{}), `{"state":"success","value":[]}`},
		{"failure", Fail[[]int](NewError("network", "down")), `{"state":"failure","error":{"code":"network","message":"down"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.data)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "success(5)", Succeed(5).String())
	assert.Equal(t, "failure(x: y)", Fail[int](NewError("x", "y")).String())
	assert.Equal(t, "loading", Loading[int]().String())
	assert.Equal(t, "state(9)", State(9).String())
}
