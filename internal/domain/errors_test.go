package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamError_Message(t *testing.T) {
	withStatus := &UpstreamError{Provider: "nominatim", Class: ClassRateLimited, StatusCode: 429, Err: errors.New("too many requests")}
	assert.Equal(t, "nominatim: status 429: too many requests", withStatus.Error())

	withoutStatus := &UpstreamError{Provider: "nominatim", Class: ClassConnectivity, Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "nominatim: dial tcp: refused", withoutStatus.Error())
}

func TestClassOf(t *testing.T) {
	wrapped := fmt.Errorf("search: %w", &UpstreamError{Class: ClassConnectivity, Err: errors.New("timeout")})

	assert.Equal(t, ClassConnectivity, ClassOf(wrapped))
	assert.Equal(t, ClassHard, ClassOf(errors.New("plain")))
	assert.True(t, ClassRateLimited.Transient())
	assert.True(t, ClassConnectivity.Transient())
	assert.False(t, ClassHard.Transient())
}

func TestNormalizePlaceKey(t *testing.T) {
	assert.Equal(t, "paris", NormalizePlaceKey("  Paris \n"))
	assert.Equal(t, "new york", NormalizePlaceKey("New York"))
	assert.Empty(t, NormalizePlaceKey("   "))
}
