package replication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftguard/internal/model"
)

func payloadFor(version uint64) pushRequest {
	doc := model.Document{LastUpdated: int64(version)}
	return pushRequest{payload: &doc, version: version}
}

func TestPushQueue_Empty(t *testing.T) {
	q := newPushQueue()
	_, ok := q.Take()
	assert.False(t, ok)
	assert.False(t, q.Pending())
}

func TestPushQueue_NewestVersionWins(t *testing.T) {
	q := newPushQueue()
	q.Offer(payloadFor(1))
	q.Offer(payloadFor(3))
	q.Offer(payloadFor(2)) // older than pending, ignored

	req, ok := q.Take()
	require.True(t, ok)
	assert.Equal(t, uint64(3), req.version)

	_, ok = q.Take()
	assert.False(t, ok, "single slot is emptied by Take")
}

func TestPushQueue_SignalCoalesces(t *testing.T) {
	q := newPushQueue()
	q.Offer(payloadFor(1))
	q.Offer(payloadFor(2))

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected signal")
	}

	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}

func TestPushQueue_Drop(t *testing.T) {
	q := newPushQueue()
	q.Offer(payloadFor(5))

	q.Drop(4)
	assert.True(t, q.Pending(), "newer request survives")

	q.Drop(5)
	assert.False(t, q.Pending())
}
