package cerrors

import (
	"errors"
	"testing"

	"github.com/palantir/stacktrace"
	"github.com/stretchr/testify/assert"
)

func TestIsUserFriendly(t *testing.T) {
	assert.True(t, IsUserFriendly(Injection{Kind: "disk-io", Reason: "apply failed"}))
	assert.False(t, IsUserFriendly(errors.New("raw transport failure")))
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeRestore, GetErrorType(Restore{Target: "cartservice", Reason: "apply failed"}))
	assert.Equal(t, ErrorTypeNonUserFriendly, GetErrorType(errors.New("raw transport failure")))
}

func TestGetRootCauseAndErrorCode_PropagatedTypedError(t *testing.T) {
	origin := Injection{Kind: "cpu-stress", Target: "cartservice", Reason: "kubectl apply failed"}
	wrapped := stacktrace.Propagate(origin, "could not apply the chaos resource")

	rootCause, errorCode := GetRootCauseAndErrorCode(wrapped)
	assert.Equal(t, origin.Error(), rootCause)
	assert.Equal(t, ErrorTypeInjection, errorCode)
}

func TestGetRootCauseAndErrorCode_OpaqueError(t *testing.T) {
	wrapped := stacktrace.Propagate(errors.New("dial tcp: connection refused"), "could not reach the cluster")

	rootCause, errorCode := GetRootCauseAndErrorCode(wrapped)
	assert.Equal(t, ErrorTypeNonUserFriendly, errorCode)
	// opaque errors keep the full chain, the root alone carries no context
	assert.Contains(t, rootCause, "could not reach the cluster")
	assert.Contains(t, rootCause, "connection refused")
}
