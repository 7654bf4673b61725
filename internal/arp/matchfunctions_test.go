package arp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExactSharMatch(t *testing.T) {
	t.Parallel()

	fn := NewMatchFunctionRegistry().Lookup(ExactSharFunction)
	require.NotNil(t, fn)

	ok, err := fn.Match("shar.example.edu", "shar.example.edu")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = fn.Match("shar.example.edu", "SHAR.example.edu")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = fn.Match("shar.example.edu", "other.example.edu")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResourceTreeMatch(t *testing.T) {
	t.Parallel()

	fn := NewMatchFunctionRegistry().Lookup(ResourceTreeFunction)
	require.NotNil(t, fn)

	cases := []struct {
		name       string
		configured string
		request    string
		want       bool
	}{
		{"exact", "https://www.example.edu/res", "https://www.example.edu/res", true},
		{"subpath", "https://www.example.edu/res", "https://www.example.edu/res/sub/page", true},
		{"trailing slash on configured", "https://www.example.edu/res/", "https://www.example.edu/res", true},
		{"segment prefix is not a subpath", "https://www.example.edu/res", "https://www.example.edu/resource", false},
		{"host mismatch", "https://www.example.edu/res", "https://other.example.edu/res", false},
		{"host is case insensitive", "https://WWW.Example.EDU/res", "https://www.example.edu/res/x", true},
		{"scheme mismatch", "https://www.example.edu/res", "http://www.example.edu/res", false},
		{"root matches everything on the host", "https://www.example.edu/", "https://www.example.edu/any/path", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := fn.Match(tc.configured, tc.request)
			require.NoError(t, err)
			require.Equal(t, tc.want, ok)
		})
	}
}

func TestResourceTreeMatchRejectsNonURLs(t *testing.T) {
	t.Parallel()

	fn := NewMatchFunctionRegistry().Lookup(ResourceTreeFunction)

	_, err := fn.Match("not a url", "https://www.example.edu/res")
	require.ErrorIs(t, err, ErrMatching)

	_, err = fn.Match("https://www.example.edu/res", "not a url")
	require.ErrorIs(t, err, ErrMatching)
}

func TestRegexMatchIsPartial(t *testing.T) {
	t.Parallel()

	fn := NewMatchFunctionRegistry().Lookup(RegexFunction)
	require.NotNil(t, fn)

	ok, err := fn.Match("example\\.edu", "https://shar.example.edu/")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = fn.Match("^https://shar\\.example\\.edu/$", "https://shar.example.edu/path")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = fn.Match("(unclosed", "anything")
	require.ErrorIs(t, err, ErrMatching)
}

func TestLookupUnknownFunctionReturnsNil(t *testing.T) {
	t.Parallel()

	registry := NewMatchFunctionRegistry()
	require.Nil(t, registry.Lookup("urn:mace:shibboleth:arp:matchFunction:doesNotExist"))
}

func TestRegisterReplacesFunction(t *testing.T) {
	t.Parallel()

	registry := NewMatchFunctionRegistry()
	registry.Register(ExactSharFunction, func() MatchFunction { return alwaysMatch{} })

	fn := registry.Lookup(ExactSharFunction)
	ok, err := fn.Match("a", "b")
	require.NoError(t, err)
	require.True(t, ok)
}

type alwaysMatch struct{}

func (alwaysMatch) Match(string, string) (bool, error) { return true, nil }
