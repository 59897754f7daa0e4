package idx_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/supabase/pkg/idx"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejects(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-ulid"} {
		_, err := idx.Parse(s)
		require.ErrorIs(t, err, idx.ErrInvalid)
	}
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	tm := time.Unix(1700000000, 0).UTC()
	a := idx.NewAt(tm)
	b := idx.NewAt(tm)
	require.Less(t, a.String(), b.String())
}

func TestTimeExtraction(t *testing.T) {
	tm := time.Unix(1700000000, 0).UTC()
	require.WithinDuration(t, tm, idx.NewAt(tm).Time(), time.Millisecond)
	require.True(t, idx.Zero.Time().IsZero())
}
