package domain

import (
	"bot-bridge/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_ReferenceCountedByConnection(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker(testRegistry(t))

	// Given luna joins from A and from B
	_, first, err := presence.Join("A", "luna")
	req.NoError(err)
	req.True(first)
	_, first, err = presence.Join("B", "Luna")
	req.NoError(err)
	req.False(first)

	// When A leaves she is still online
	identity, last, ok := presence.Leave("A")
	req.True(ok)
	req.False(last)
	req.Equal("luna", identity.Key)
	req.True(presence.Online("luna"))

	// When B leaves she is gone
	_, last, ok = presence.Leave("B")
	req.True(ok)
	req.True(last)
	req.False(presence.Online("luna"))
	req.Empty(presence.Snapshot())

	// Leaving twice is harmless
	_, _, ok = presence.Leave("B")
	req.False(ok)
}

func TestPresence_RejoinSameKeyChangesNothing(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker(testRegistry(t))

	_, _, err := presence.Join("A", "bobo")
	req.NoError(err)
	_, first, err := presence.Join("A", "bobo")
	req.NoError(err)
	req.False(first)

	_, last, ok := presence.Leave("A")
	req.True(ok)
	req.True(last)
}

func TestPresence_SnapshotInArrivalOrder(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker(testRegistry(t))

	_, _, err := presence.Join("1", "enfield")
	req.NoError(err)
	_, _, err = presence.Join("2", "luna")
	req.NoError(err)
	_, _, err = presence.Join("3", "bobo")
	req.NoError(err)
	presence.Leave("2")

	req.Equal([]string{"enfield", "bobo"}, presence.Keys())
	snapshot := presence.Snapshot()
	req.Len(snapshot, 2)
	req.Equal("Enfield", snapshot[0].Name)

	bound, ok := presence.Bound("3")
	req.True(ok)
	req.Equal("bobo", bound)
}

func TestPresence_UnknownKey(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceTracker(testRegistry(t))

	_, _, err := presence.Join("A", "ghost")
	req.ErrorIs(err, errors.ErrUnknownSender)
	_, ok := presence.Bound("A")
	req.False(ok)
}
