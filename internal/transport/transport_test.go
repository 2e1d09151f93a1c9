package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChannelListenerDeliversInOrder(t *testing.T) {
	listener := NewChannelListener(4)
	defer listener.Close()
	ctx := context.Background()

	events := []Event{
		{Kind: EventKeyRedemption, UserID: 1, Text: "ABCD1234EFGH"},
		{Kind: EventImageUploaded, UserID: 1, ArtifactPath: "/tmp/thumb.jpg"},
		{Kind: EventVideoUploaded, UserID: 1, ArtifactPath: "/tmp/video.mp4", OriginalName: "movie.mp4"},
	}
	for _, event := range events {
		if err := listener.Publish(ctx, event); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for i, want := range events {
		got := <-listener.Events()
		if got != want {
			t.Fatalf("event %d: got %#v, want %#v", i, got, want)
		}
	}
}

func TestChannelListenerPublishAfterClose(t *testing.T) {
	listener := NewChannelListener(1)
	if err := listener.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	err := listener.Publish(context.Background(), Event{Kind: EventCancel, UserID: 2})
	if !errors.Is(err, ErrListenerClosed) {
		t.Fatalf("expected ErrListenerClosed, got %v", err)
	}
	select {
	case <-listener.Done():
	default:
		t.Fatal("Done must be signalled after Close")
	}
	if err := listener.Close(); err != nil {
		t.Fatalf("second close must be a no-op: %v", err)
	}
}

func TestChannelListenerPublishHonorsContext(t *testing.T) {
	listener := NewChannelListener(0)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := listener.Publish(ctx, Event{Kind: EventCancel, UserID: 3})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error with no consumer, got %v", err)
	}
}
