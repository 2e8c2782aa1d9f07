package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveErrorError(t *testing.T) {
	err := NewProbeFailure("http://localhost:8080/Plone/x.js", fmt.Errorf("connection refused"))

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_PROBE_FAILED]")
	assert.Contains(t, msg, "target:http://localhost:8080/Plone/x.js")
	assert.Contains(t, msg, "probe failed")
	assert.Contains(t, msg, "connection refused")
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := NotFound("http://localhost:8080/Plone/missing")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsProbeFailure(err))
}

func TestProbeFailure(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := NewProbeFailure("http://h/x", cause)

	assert.True(t, IsProbeFailure(err))
	assert.False(t, IsNotFound(err))
	assert.True(t, IsRecoverable(err))
	assert.ErrorIs(t, err, cause)
}

func TestMisconfiguredPortalURL(t *testing.T) {
	err := NewMisconfiguredPortalURL("::bad", nil)

	assert.True(t, IsConfigError(err))
	assert.False(t, IsRecoverable(err))
	assert.Contains(t, err.Error(), `"::bad"`)
}

func TestWithContext(t *testing.T) {
	err := NewValidationError(ErrCodeValidationFailed, "bad").WithContext("field", "portal.url")

	require.NotNil(t, err.Context)
	assert.Equal(t, "portal.url", err.Context["field"])
}

func TestIsRecoverableForeignError(t *testing.T) {
	assert.False(t, IsRecoverable(fmt.Errorf("plain")))
	assert.False(t, IsConfigError(nil))
}

func TestValidationErrorCollection(t *testing.T) {
	var vec ValidationErrorCollection
	assert.False(t, vec.HasErrors())
	assert.Nil(t, vec.ToResolveError())

	vec.AddField("portal.url", "", "must not be empty")
	vec.AddField("server.port", 70000, "out of range", "use 1-65535")

	require.True(t, vec.HasErrors())
	assert.Contains(t, vec.Error(), "validation failed with 2 errors")

	re := vec.ToResolveError()
	require.NotNil(t, re)
	assert.True(t, IsConfigError(re))
	assert.Contains(t, re.Context, "server.port")
}
