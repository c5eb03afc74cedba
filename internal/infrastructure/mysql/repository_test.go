package mysql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRepository_RejectsBadDSN(t *testing.T) {
	_, err := NewRepository("")
	require.Error(t, err)

	_, err = NewRepository("not a dsn")
	require.ErrorContains(t, err, "mysql dsn")
}
