package idx_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/northbeam/tokend/pkg/idx"
)

func TestNewProducesUniqueSortedIDs(t *testing.T) {
	a := idx.New()
	b := idx.New()

	require.NotEqual(t, a, b)
	require.LessOrEqual(t, a.String(), b.String())
}

func TestParse(t *testing.T) {
	id := idx.New()

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = idx.Parse("")
	require.ErrorIs(t, err, idx.ErrInvalid)

	_, err = idx.Parse("not-a-ulid")
	require.ErrorIs(t, err, idx.ErrInvalid)
}

func TestTime(t *testing.T) {
	id := idx.New()
	require.WithinDuration(t, time.Now().UTC(), id.Time(), 5*time.Second)
	require.True(t, idx.Zero.Time().IsZero())
}
