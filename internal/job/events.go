package job

import (
	"github.com/docpipe/qadoc/internal/entity"
)

// Kind tags an event emitted by the worker to its consumer.
type Kind string

const (
	KindLog              Kind = "log"
	KindStatus           Kind = "status"
	KindProgress         Kind = "progress"
	KindIncrementCounter Kind = "increment_counter"
	KindFileComplete     Kind = "file_complete"
	KindReviewItem       Kind = "review_item"
	KindResultPath       Kind = "result_path"
	KindFinish           Kind = "finish"
)

// Event carries only value payloads so the worker and its consumer stay
// fully decoupled; no live references cross the boundary.
type Event struct {
	Kind Kind

	Tag     string // log level: info | warning | error | success
	Message string // log or status text
	Stage   string // stage label on status events (constants.Stage*)

	Counter string // increment_counter
	Status  string // file_complete / finish
	Current int    // progress
	Total   int    // progress
	Path    string // result_path

	Review *entity.ReviewItem // review_item; a fresh copy per event
}

// Sink receives the tagged event stream. Implementations must not retain
// goroutine-unsafe state; the worker calls Emit from its own goroutine.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// ChannelSink buffers events for a polling consumer (CLI tick loop, tests).
type ChannelSink struct {
	C chan Event
}

func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 256
	}
	return &ChannelSink{C: make(chan Event, size)}
}

func (s *ChannelSink) Emit(ev Event) { s.C <- ev }

// Close signals the consumer that no further events will arrive.
func (s *ChannelSink) Close() { close(s.C) }
