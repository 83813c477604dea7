package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/session"),
		attribute.String("session_token", "abc"),
		attribute.String("http.request.search", "acme"),
		attribute.String("user.password", "hunter2"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	err := SafeError(errors.New("first line\n/home/app/internal/x.go:12"))
	assert.Equal(t, "first line", err.Error())

	long := SafeError(errors.New(strings.Repeat("x", 1000)))
	assert.Len(t, long.Error(), 256)
}
