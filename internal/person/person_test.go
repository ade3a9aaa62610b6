package person

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	p, err := ParseLine("people.csv", "Jill,Doe", 1)
	require.NoError(t, err)
	require.Equal(t, Person{FirstName: "Jill", LastName: "Doe"}, p)
}

func TestParseLineTrimsWhitespace(t *testing.T) {
	p, err := ParseLine("people.csv", "  Jill , Doe ", 1)
	require.NoError(t, err)
	require.Equal(t, Person{FirstName: "Jill", LastName: "Doe"}, p)
}

func TestParseLineMalformed(t *testing.T) {
	for _, line := range []string{"Jill", "Jill,Doe,Extra", "a,b,c,d"} {
		_, err := ParseLine("people.csv", line, 7)
		require.Error(t, err)

		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		require.Equal(t, 7, perr.Line)
		require.Equal(t, "people.csv", perr.Path)
		require.Equal(t, line, perr.Text)
	}
}

func TestTransformUppercases(t *testing.T) {
	got := Transform(Person{FirstName: "Jill", LastName: "Doe"})
	require.Equal(t, Person{FirstName: "JILL", LastName: "DOE"}, got)
}

func TestTransformIsIdempotent(t *testing.T) {
	once := Transform(Person{FirstName: "Jill", LastName: "Doe"})
	twice := Transform(once)
	require.Equal(t, once, twice)
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	in := Person{FirstName: "Jill", LastName: "Doe"}
	_ = Transform(in)
	require.Equal(t, Person{FirstName: "Jill", LastName: "Doe"}, in)
}

func TestPersonString(t *testing.T) {
	p := Person{FirstName: "Jill", LastName: "Doe"}
	require.Equal(t, "firstName: Jill, lastName: Doe", p.String())
}
