package pathmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultAnonymousPaths, m.Patterns())

	tests := map[string]bool{
		"/healthz":             true,
		"/healthz/ready":       true,
		"/public/css/x.css":    true,
		"/static/index.html":   true,
		"/static/js/app.js":    true,
		"/api/v1/users/me":     false,
		"/publicity":           false,
		"/private/data":        false,
		"/":                    false,
		"/api/v1/static/a.txt": false,
	}
	for path, want := range tests {
		assert.Equal(t, want, m.Match(path), path)
	}
}

func TestMatcher_ConfiguredReplacesDefaults(t *testing.T) {
	m, err := New([]string{"/public/**", "/api/login"})
	require.NoError(t, err)

	assert.True(t, m.Match("/public/css/x.css"))
	assert.True(t, m.Match("/api/login"))
	assert.False(t, m.Match("/private/data"))
	assert.False(t, m.Match("/healthz"))
	assert.False(t, m.Match("/static/index.html"))
	assert.False(t, m.Match("/api/login/extra"))
}

func TestMatcher_EmptyDisablesDefaults(t *testing.T) {
	m, err := New([]string{})
	require.NoError(t, err)
	assert.False(t, m.Match("/healthz"))
}

func TestMatcher_SingleStarStaysInSegment(t *testing.T) {
	m, err := New([]string{"/docs/*"})
	require.NoError(t, err)

	assert.True(t, m.Match("/docs/a"))
	assert.False(t, m.Match("/docs/a/b"))
}

func TestMatcher_Exact(t *testing.T) {
	m, err := New([]string{}, "/auth/logout", "/auth/callback/oidc")
	require.NoError(t, err)

	assert.True(t, m.Match("/auth/logout"))
	assert.True(t, m.Match("/auth/callback/oidc"))
	assert.False(t, m.Match("/auth/logout/x"))
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New([]string{"/public/[a"})
	require.Error(t, err)
	require.Error(t, Validate([]string{"/ok/**", "/bad/{a"}))
	require.NoError(t, Validate([]string{"/ok/**"}))
}
