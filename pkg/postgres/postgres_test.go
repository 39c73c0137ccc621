package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRetry(t *testing.T) {
	t.Parallel()

	errDown := errors.New("connection refused")

	t.Run("succeeds after failures", func(t *testing.T) {
		t.Parallel()

		calls := 0
		ping := func(context.Context) error {
			calls++
			if calls < 3 {
				return errDown
			}
			return nil
		}

		err := Retry(zap.NewNop(), ping, 5, time.Millisecond)(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		t.Parallel()

		calls := 0
		ping := func(context.Context) error {
			calls++
			return errDown
		}

		err := Retry(zap.NewNop(), ping, 2, time.Millisecond)(context.Background())
		assert.ErrorIs(t, err, errDown)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		ping := func(context.Context) error {
			cancel()
			return errDown
		}

		err := Retry(zap.NewNop(), ping, 5, time.Hour)(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
