package api

import (
	"context"
	"io"
	"sync"
)

// Stream delivers decoded server events for one assistant turn.
// Recv returns io.EOF once the transport finishes cleanly; Close aborts the
// underlying request.
type Stream interface {
	Recv() (StreamEvent, error)
	Close() error
}

type eventStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan StreamEvent

	mu     sync.Mutex
	runErr error
}

// newEventStream runs fn in a goroutine and exposes its events as a Stream.
// fn owns the network request for its whole lifetime; its return error is
// surfaced by Recv after the event channel drains.
func newEventStream(ctx context.Context, run func(context.Context, chan<- StreamEvent) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		ctx:    streamCtx,
		cancel: cancel,
		events: make(chan StreamEvent, 16),
	}
	go func() {
		err := run(streamCtx, s.events)
		s.mu.Lock()
		s.runErr = err
		s.mu.Unlock()
		close(s.events)
	}()
	return s
}

func (s *eventStream) Recv() (StreamEvent, error) {
	// Non-blocking drain: consume any buffered event before checking
	// ctx.Done(), so a terminal event already decoded is not dropped when
	// cancellation and data are ready at the same time.
	select {
	case event, ok := <-s.events:
		if !ok {
			return StreamEvent{}, s.finishErr()
		}
		return event, nil
	default:
	}

	select {
	case <-s.ctx.Done():
		return StreamEvent{}, s.ctx.Err()
	case event, ok := <-s.events:
		if !ok {
			return StreamEvent{}, s.finishErr()
		}
		return event, nil
	}
}

func (s *eventStream) finishErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runErr != nil {
		return s.runErr
	}
	return io.EOF
}

func (s *eventStream) Close() error {
	s.cancel()
	return nil
}
