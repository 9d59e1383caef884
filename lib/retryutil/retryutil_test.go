package retryutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	failure := errors.New("still broken")
	err := Do(context.Background(), "broken", func() error {
		calls++
		return failure
	})
	require.ErrorIs(t, err, failure)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	rejected := errors.New("bad credentials")
	err := Do(context.Background(), "login", func() error {
		calls++
		return Permanent(rejected)
	})
	require.ErrorIs(t, err, rejected)
	require.Equal(t, 1, calls)
}
