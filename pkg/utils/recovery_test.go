package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverAsError(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		fn := func() (err error) {
			defer RecoverAsError(&err)
			panic("test panic")
		}

		err := fn()
		require.Error(t, err)

		var panicErr *PanicError
		require.True(t, errors.As(err, &panicErr))
		assert.Equal(t, "test panic", panicErr.Value)
		assert.NotEmpty(t, panicErr.StackTrace)
	})

	t.Run("preserves original error", func(t *testing.T) {
		original := errors.New("original error")
		fn := func() (err error) {
			defer RecoverAsError(&err)
			return original
		}

		assert.Equal(t, original, fn())
	})
}

func TestSafeGo(t *testing.T) {
	errCh := make(chan error, 1)

	SafeGo(func() {
		panic("boom")
	}, func(err error) {
		errCh <- err
	})

	select {
	case err := <-errCh:
		var panicErr *PanicError
		require.True(t, errors.As(err, &panicErr))
		assert.Equal(t, "boom", panicErr.Value)
	case <-time.After(time.Second):
		t.Fatal("onError was not called")
	}
}

func TestSafeGoWithResult(t *testing.T) {
	t.Run("returns error", func(t *testing.T) {
		want := errors.New("failed")
		err := <-SafeGoWithResult(func() error { return want })
		assert.Equal(t, want, err)
	})

	t.Run("returns panic", func(t *testing.T) {
		err := <-SafeGoWithResult(func() error { panic("boom") })
		var panicErr *PanicError
		assert.True(t, errors.As(err, &panicErr))
	})

	t.Run("closes on success", func(t *testing.T) {
		err, ok := <-SafeGoWithResult(func() error { return nil })
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}
