package media

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtcp"
)

// defaultQueueDepth is the bounded per-subscriber frame queue size
// (SPEC_FULL.md §4.5).
const defaultQueueDepth = 64

// ErrSlowConsumer marks a subscriber that was disconnected because an
// I-frame would otherwise have been dropped from its queue.
var ErrSlowConsumer = errors.New("media: slow consumer")

// Subscriber receives the demultiplexed frame stream for one stream kind.
// Frames is closed when the subscriber is disconnected, either by the
// caller or by the hub after a SlowConsumer ejection.
type Subscriber struct {
	Frames   chan Frame
	dropped  atomic.Uint64
	gotKey   atomic.Bool
	closed   atomic.Bool
	closeErr atomic.Pointer[error]
	mu       sync.Mutex
}

func newSubscriber() *Subscriber {
	return &Subscriber{Frames: make(chan Frame, defaultQueueDepth)}
}

// Err returns the reason this subscriber was disconnected, if any.
func (s *Subscriber) Err() error {
	if p := s.closeErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *Subscriber) close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.CompareAndSwap(false, true) {
		if err != nil {
			s.closeErr.Store(&err)
		}
		close(s.Frames)
	}
}

// Hub fans a single demultiplexed frame stream out to multiple bounded
// subscribers, applying the drop-P-before-I backpressure policy of
// SPEC_FULL.md §4.5. Grounded on the teacher's pacer.go buffered-channel,
// drop-under-load shape.
type Hub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[*Subscriber]bool

	// RequestKeyframe is signalled (at most once per outstanding request)
	// whenever a subscriber joins or is ejected as a slow consumer; dropping
	// P-frames for a lagging subscriber does not signal it. The channel carries the
	// conventional RTCP PictureLossIndication signal reused as the internal
	// "need a keyframe" event (SPEC_FULL.md §10.3).
	RequestKeyframe chan rtcp.PictureLossIndication
}

// NewHub returns an empty fan-out hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:          logger,
		subscribers:     make(map[*Subscriber]bool),
		RequestKeyframe: make(chan rtcp.PictureLossIndication, 1),
	}
}

// Subscribe registers a new subscriber. It will not receive any frame until
// the first keyframe arrives after subscription.
func (h *Hub) Subscribe() *Subscriber {
	s := newSubscriber()
	h.mu.Lock()
	h.subscribers[s] = true
	h.mu.Unlock()
	h.signalKeyframeNeeded()
	return s
}

// Unsubscribe removes s from the fan-out set.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	delete(h.subscribers, s)
	h.mu.Unlock()
	s.close(nil)
}

// Count reports the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) signalKeyframeNeeded() {
	select {
	case h.RequestKeyframe <- rtcp.PictureLossIndication{}:
	default:
	}
}

// Publish delivers frame to every live subscriber, applying per-subscriber
// keyframe-gating and backpressure.
func (h *Hub) Publish(frame Frame) {
	h.mu.Lock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		h.deliver(s, frame)
	}
}

func (h *Hub) deliver(s *Subscriber, frame Frame) {
	if s.closed.Load() {
		return
	}
	if !s.gotKey.Load() {
		if !frame.IsKeyframe() {
			return // waiting for a keyframe to start this subscriber
		}
		s.gotKey.Store(true)
	}

	select {
	case s.Frames <- frame:
		return
	default:
	}

	// Queue full: drop a pending P-frame to make room rather than this
	// I-frame, if possible; otherwise this frame itself is expendable only
	// if it's a P-frame.
	if !frame.IsKeyframe() {
		s.dropped.Add(1)
		return
	}
	if h.dropOneP(s) {
		select {
		case s.Frames <- frame:
			return
		default:
		}
	}

	// Could not make room for an I-frame: eject the subscriber.
	if h.logger != nil {
		h.logger.Warn("ejecting slow media subscriber", "dropped", s.dropped.Load())
	}
	h.mu.Lock()
	delete(h.subscribers, s)
	h.mu.Unlock()
	s.close(ErrSlowConsumer)
	h.signalKeyframeNeeded()
}

// dropOneP removes one buffered P-frame from s's queue to make room,
// reporting whether it found one to drop. Only called while s.Frames is
// full, so this never blocks.
func (h *Hub) dropOneP(s *Subscriber) bool {
	for {
		select {
		case f := <-s.Frames:
			if f.IsVideo() && !f.IsKeyframe() {
				s.dropped.Add(1)
				return true
			}
			// Not a droppable frame; put it back isn't possible on a chan,
			// so re-deliver immediately to avoid losing it. This only
			// occurs if the queue is saturated with keyframes/audio, an
			// unusual situation; we accept the minor reordering risk to
			// avoid an unbounded retry loop.
			select {
			case s.Frames <- f:
			default:
			}
			return false
		default:
			return false
		}
	}
}

// WaitKeyframeRequest blocks until a keyframe request is signalled or ctx is
// done. Intended for the camera supervisor's pause/resubscribe loop.
func (h *Hub) WaitKeyframeRequest(ctx context.Context) error {
	select {
	case <-h.RequestKeyframe:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
