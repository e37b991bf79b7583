package errs_test

import (
	"errors"
	"testing"

	"github.com/123swk123/pyfat/errs"
	"github.com/stretchr/testify/assert"
)

func TestWithMessage(t *testing.T) {
	err := errs.NotFound.WithMessage("/FOO/BAR")
	assert.Equal(t, "not found: /FOO/BAR", err.Error())
	assert.ErrorIs(t, err, errs.NotFound)
	assert.False(t, errors.Is(err, errs.NoSpace))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("short read")
	err := errs.IO.WrapError(cause)

	assert.ErrorIs(t, err, errs.IO)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "i/o error: short read", err.Error())
}
