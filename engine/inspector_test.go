package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/intents/crypto"
	"github.com/tos-network/intents/nonce"
)

func TestCollectingInspectorOrdering(t *testing.T) {
	c := new(CollectingInspector)

	c.OnEvent(Event{Kind: EventTransfer, Data: "first"})
	c.EmitEventEventually(Event{Kind: EventIntentsExecuted, Data: "postponed"})
	c.OnEvent(Event{Kind: EventWithdraw, Data: "second"})

	// Postponed events stay invisible until Finalize.
	require.Len(t, c.Events, 2)
	c.Finalize()
	require.Len(t, c.Events, 3)
	require.Equal(t, EventIntentsExecuted, c.Events[2].Kind)

	// Finalize drains the buffer, so running it again adds nothing.
	c.Finalize()
	require.Len(t, c.Events, 3)
}

func TestCollectingInspectorObservations(t *testing.T) {
	c := new(CollectingInspector)

	d := nonce.Timeout(engineTestNow, 0)
	c.OnDeadline(d)
	h := crypto.Sha256([]byte("intent"))
	c.OnIntentExecuted("alice.near", h)

	require.Equal(t, []nonce.Deadline{d}, c.Deadlines)
	require.Equal(t, []crypto.Hash{h}, c.Executed)
	require.Empty(t, c.Events)
}

func TestLogInspectorFinalizeDrains(t *testing.T) {
	l := new(LogInspector)
	l.EmitEventEventually(Event{Kind: EventSaltRotated})
	l.EmitEventEventually(Event{Kind: EventSaltsInvalidated})
	require.Len(t, l.postponed, 2)
	l.Finalize()
	require.Empty(t, l.postponed)
}
