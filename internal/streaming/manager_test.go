package streaming

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHub(capacity int) *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan StageEvent]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

func TestRingReplaySince(t *testing.T) {
	r := newRing(3)
	for i := 0; i < 4; i++ {
		r.push(StageEvent{Seq: uint64(i + 1)})
	}
	// Ring holds seq 2,3,4 after the overwrite.
	evs := r.since(0)
	require.Len(t, evs, 3)
	require.Equal(t, uint64(2), evs[0].Seq)
	require.Equal(t, uint64(4), evs[2].Seq)

	evs = r.since(2)
	require.Len(t, evs, 2)
	require.Equal(t, uint64(3), evs[0].Seq)
}

func TestHubPublishSubscribe(t *testing.T) {
	h := newTestHub(8)

	ch := h.Subscribe("s1", 4)
	h.Publish(StageEvent{SessionID: "s1", Stage: "classify", Status: "started"})
	h.Publish(StageEvent{SessionID: "s1", Stage: "classify", Status: "completed"})

	ev := <-ch
	require.Equal(t, "classify", ev.Stage)
	require.Equal(t, "started", ev.Status)

	h.Unsubscribe("s1", ch)
	_, open := <-ch
	require.False(t, open)
}

func TestHubReplayAfterForget(t *testing.T) {
	h := newTestHub(8)
	for i := 0; i < 5; i++ {
		h.Publish(StageEvent{SessionID: "s2", Stage: "profile_data"})
	}
	require.Len(t, h.ReplaySince("s2", 2), 2)

	h.Forget("s2")
	require.Empty(t, h.ReplaySince("s2", 0))
}
