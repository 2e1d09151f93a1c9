// Package transport defines the boundary between the service core and the
// messaging platform it serves. The concrete platform client (bot framework,
// webhook receiver) lives outside this module; it feeds Events in through a
// Listener and delivers replies through a Responder.
package transport

import (
	"context"
	"errors"
	"sync"
)

// EventKind enumerates the inbound events the core reacts to.
type EventKind string

const (
	// EventKeyRedemption carries an access key submitted by a user.
	EventKeyRedemption EventKind = "key_redemption"
	// EventImageUploaded carries a downloaded thumbnail candidate.
	EventImageUploaded EventKind = "image_uploaded"
	// EventVideoUploaded carries a downloaded video awaiting processing.
	EventVideoUploaded EventKind = "video_uploaded"
	// EventCancel asks the core to discard the user's staged state.
	EventCancel EventKind = "cancel"
	// EventStatus asks for the user's subscription report.
	EventStatus EventKind = "status"
)

// Event is one inbound user action, already materialized on local disk by the
// platform adapter. Text holds the key for redemption events; ArtifactPath
// points at the downloaded file for upload events.
type Event struct {
	Kind         EventKind
	UserID       int64
	Text         string
	ArtifactPath string
	OriginalName string
}

// Responder sends user-visible replies back over the messaging platform.
type Responder interface {
	SendMessage(ctx context.Context, userID int64, text string) error
	SendVideo(ctx context.Context, userID int64, videoPath, caption string) error
}

// Listener yields inbound events until closed. Done is signalled on Close so
// consumers can stop selecting on Events.
type Listener interface {
	Events() <-chan Event
	Done() <-chan struct{}
	Close() error
}

// ErrListenerClosed is returned by Publish after Close.
var ErrListenerClosed = errors.New("transport: listener closed")

// ChannelListener is an in-process Listener fed by a platform adapter (or a
// test) calling Publish.
type ChannelListener struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannelListener builds a listener with the given buffer depth.
func NewChannelListener(buffer int) *ChannelListener {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelListener{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Publish enqueues an event, blocking while the buffer is full.
func (l *ChannelListener) Publish(ctx context.Context, event Event) error {
	select {
	case <-l.done:
		return ErrListenerClosed
	default:
	}
	select {
	case l.events <- event:
		return nil
	case <-l.done:
		return ErrListenerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the inbound event stream.
func (l *ChannelListener) Events() <-chan Event {
	return l.events
}

// Done is closed when the listener shuts down.
func (l *ChannelListener) Done() <-chan struct{} {
	return l.done
}

// Close stops the stream. Events already buffered may still be read.
func (l *ChannelListener) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
