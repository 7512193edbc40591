package errors_test

import (
	"errors"
	"fmt"
	"testing"

	errors2 "github.com/boardgamescores/scorestore/kit/platform/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		msg  string
	}{
		{
			name: "code only",
			err:  &errors2.Error{Code: errors2.ENotFound},
			msg:  "<not found>",
		},
		{
			name: "message and wrapped error",
			err: &errors2.Error{
				Code: errors2.EUnavailable,
				Msg:  "data store unavailable",
				Err:  errors.New("timeout"),
			},
			msg: "data store unavailable: timeout",
		},
		{
			name: "wrapped only",
			err:  &errors2.Error{Err: errors.New("boom")},
			msg:  "boom",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.msg, c.err.Error())
		})
	}
}

func TestErrorCode(t *testing.T) {
	inner := &errors2.Error{Code: errors2.EConflict, Op: "scoring/UpdateSettings"}
	outer := &errors2.Error{Err: inner}

	assert.Equal(t, errors2.EConflict, errors2.ErrorCode(outer))
	assert.Equal(t, "scoring/UpdateSettings", errors2.ErrorOp(outer))
	assert.Equal(t, errors2.EConflict, errors2.ErrorCode(fmt.Errorf("opening: %w", outer)))
	assert.Equal(t, errors2.EInternal, errors2.ErrorCode(errors.New("plain")))
	assert.Equal(t, "", errors2.ErrorCode(nil))
}

func TestErrorUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := errors2.Unavailable("storage/Open", "data store unavailable", fmt.Errorf("open: %w", sentinel))

	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, "data store unavailable", errors2.ErrorMessage(err))
	assert.Equal(t, "storage/Open", errors2.ErrorOp(err))
	assert.Equal(t, "data store unavailable: open: sentinel", err.Error())
	assert.Equal(t, "An internal error has occurred.", errors2.ErrorMessage(sentinel))
}
