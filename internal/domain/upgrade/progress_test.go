package upgrade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestProgressClone verifies that Clone deep-copies Done and handles nil safely.
func TestProgressClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Progress)(nil).Clone())

	p := NewProgress("session", "Plesk::Test", time.Unix(100, 0))
	p.MarkDone("first")

	c := p.Clone()
	require.Equal(t, p, c)

	c.MarkDone("second")
	require.Len(t, p.Done, 1)
	require.Len(t, c.Done, 2)
}

// TestProgressMarkDone ensures actions are recorded once and failures can be cleared.
func TestProgressMarkDone(t *testing.T) {
	t.Parallel()

	p := NewProgress("session", "Plesk::Test", time.Now())
	require.Equal(t, PhaseConvert, p.Phase)

	p.MarkDone("a")
	p.MarkDone("a")
	require.Equal(t, []string{"a"}, p.Done)
	require.True(t, p.IsDone("a"))
	require.False(t, p.IsDone("b"))

	p.Failed = "a"
	p.Error = "boom"
	require.True(t, p.HasFailed())

	p.ClearFailure()
	require.False(t, p.HasFailed())
}

// TestProgressTouched includes an interrupted action until it completes.
func TestProgressTouched(t *testing.T) {
	t.Parallel()

	p := NewProgress("session", "Plesk::Test", time.Now())
	p.MarkDone("a")
	p.Interrupted = "b"
	p.ClearFailure()

	require.True(t, p.Touched("a"))
	require.True(t, p.Touched("b"))
	require.False(t, p.Touched("c"))
	require.False(t, p.Touched(""))

	p.MarkDone("b")
	require.Empty(t, p.Interrupted)
	require.True(t, p.Touched("b"))
}

// TestParsePhase covers known and unknown phase names.
func TestParsePhase(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"convert", " Finish ", "REVERT"} {
		_, err := ParsePhase(s)
		require.NoError(t, err)
	}

	_, err := ParsePhase("rollback")
	require.ErrorIs(t, err, ErrUnknownPhase)
}

// TestSystemDescriptionMatches checks wildcard matching of system descriptions.
func TestSystemDescriptionMatches(t *testing.T) {
	t.Parallel()

	require.True(t, SystemDescription{}.Matches("Debian", "11"))
	require.True(t, SystemDescription{OSName: "Debian"}.Matches("Debian", "11"))
	require.False(t, SystemDescription{OSName: "Ubuntu"}.Matches("Debian", "11"))
	require.False(t, SystemDescription{OSName: "Debian", OSVersion: "12"}.Matches("Debian", "11"))
	require.Equal(t, "Debian *", SystemDescription{OSName: "Debian"}.String())
}
