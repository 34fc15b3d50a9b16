package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Suraj127-git/medchat/domain/entities"
)

func TestNotifyRecordsAndStreams(t *testing.T) {
	center := NewCenter(Config{}, zaptest.NewLogger(t))

	center.Notify(entities.NoticeNetworkFailure, entities.ChannelVoice, "Voice processing failed.")

	select {
	case n := <-center.Events():
		assert.Equal(t, entities.ChannelVoice, n.Channel)
		assert.Equal(t, "Voice processing failed.", n.Text)
		assert.NotEmpty(t, n.ID)
	default:
		t.Fatal("Expected a notice event")
	}

	require.Len(t, center.Recent(), 1)
}

func TestActiveHonoursTTL(t *testing.T) {
	center := NewCenter(Config{TTL: time.Second}, zaptest.NewLogger(t))
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	center.now = func() time.Time { return base }

	center.Notify(entities.NoticePreconditionUnmet, entities.ChannelGraph, "first")

	assert.Len(t, center.Active(base.Add(500*time.Millisecond)), 1)
	assert.Empty(t, center.Active(base.Add(time.Second)))
}

func TestRecentIsBounded(t *testing.T) {
	center := NewCenter(Config{Max: 3}, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		center.Notify(entities.NoticeNetworkFailure, entities.ChannelImage, fmt.Sprintf("n%d", i))
	}

	recent := center.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "n2", recent[0].Text)
	assert.Equal(t, "n4", recent[2].Text)
}

func TestNotifyNeverBlocks(t *testing.T) {
	center := NewCenter(Config{Max: 1}, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			center.Notify(entities.NoticeNetworkFailure, entities.ChannelGraph, "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full channel")
	}
}

func TestDismiss(t *testing.T) {
	center := NewCenter(Config{}, zaptest.NewLogger(t))
	center.Notify(entities.NoticeNetworkFailure, entities.ChannelGraph, "x")

	id := center.Recent()[0].ID
	assert.True(t, center.Dismiss(id))
	assert.False(t, center.Dismiss(id))
	assert.Empty(t, center.Recent())
}
