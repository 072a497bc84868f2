package code

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithDetailsClones(t *testing.T) {
	base := ErrUnavailable
	detailed := base.WithDetails("host unreachable")

	require.Empty(t, base.Details())
	require.Equal(t, []string{"host unreachable"}, detailed.Details())
	require.Equal(t, base.Code(), detailed.Code())
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := ErrUnauthorized.WithDetails("token revoked")
	require.True(t, errors.Is(err, ErrUnauthorized))
	require.False(t, errors.Is(err, ErrUnavailable))
}

func TestDuplicateCodePanics(t *testing.T) {
	require.Panics(t, func() {
		NewError(ErrUnauthorized.Code(), "duplicate registration")
	})
}
