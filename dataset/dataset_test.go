package dataset

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Node {
	return Set("run",
		String("type", "eigenvalue"),
		Set("solution",
			Array("phi", []float64{1, 0.5}),
			String("k", "1.2"),
		),
		Set("step"),
		Set("step"),
	)
}

func TestAccessors(t *testing.T) {
	n := sample()
	assert.Equal(t, KindSet, n.Kind())
	assert.Equal(t, "run", Name(n))
	assert.Equal(t, "data set", Text(n))
	assert.Nil(t, Value(n))
	assert.Len(t, Children(n), 4)

	phi, ok := Find(n, "solution/phi")
	require.True(t, ok)
	assert.Equal(t, KindArray, phi.Kind())
	assert.Equal(t, []float64{1, 0.5}, Value(phi))
	assert.Equal(t, "double vector", Text(phi))
	assert.Nil(t, Children(phi))

	k, ok := Find(n, "/solution/k/")
	require.True(t, ok)
	assert.Equal(t, "1.2", Text(k))

	_, ok = Find(n, "solution/psi")
	assert.False(t, ok)
	assert.Equal(t, 2, CountSets(n, "step"))
	assert.Equal(t, 0, CountSets(n, "type"))
}

func TestArrayCopiesValues(t *testing.T) {
	v := []float64{1, 2}
	n := Array("a", v)
	v[0] = 7
	assert.Equal(t, []float64{1, 2}, Value(n))
}

func TestAdd(t *testing.T) {
	base := Set("s", String("a", "1"))
	grown := base.Add(String("b", "2"))
	assert.Len(t, Children(base), 1)
	assert.Len(t, Children(grown), 2)

	s := String("x", "y")
	assert.True(t, cmp.Equal(s, s.Add(String("z", "w")), cmp.AllowUnexported(Node{})))
}

func TestMatchDispatchesEveryKind(t *testing.T) {
	kinds := Cases[Kind]{
		Set:    func(string, []Node) Kind { return KindSet },
		String: func(string, string) Kind { return KindString },
		Array:  func(string, []float64) Kind { return KindArray },
	}
	for _, n := range []Node{Set("s"), String("s", "v"), Array("a", nil)} {
		assert.Equal(t, n.Kind(), Match[Kind](n, kinds))
	}
	assert.Equal(t, "array", KindArray.String())
}

func TestFormat(t *testing.T) {
	want := `Data Set: run
{
  type = eigenvalue
  Data Set: solution
  {
    phi = 1 0.5
    k = 1.2
  }
  Data Set: step
  {
  }
  Data Set: step
  {
  }
}
`
	assert.Equal(t, want, Format(sample()))
}

func TestWalk(t *testing.T) {
	var paths []string
	err := Walk(sample(), func(path string, n Node) error {
		paths = append(paths, path)
		return nil
	})
	require.NoError(t, err)
	want := []string{"run", "run/type", "run/solution", "run/solution/phi", "run/solution/k", "run/step", "run/step"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("walk order (-want +got):\n%s", diff)
	}

	stop := errors.New("stop")
	count := 0
	err = Walk(sample(), func(string, Node) error {
		count++
		if count == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, count)
}
