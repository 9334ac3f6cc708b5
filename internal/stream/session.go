// Package stream drives one SSE request/response cycle to a terminal outcome,
// dispatching decoded events to registered handlers in arrival order.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/quillworks/quill/internal/event"
	"github.com/quillworks/quill/internal/sse"
)

// Terminal failure causes.
var (
	// ErrParseExceeded means the session dropped more malformed frames than
	// its ceiling allows.
	ErrParseExceeded = errors.New("malformed frame ceiling exceeded")
	// ErrInactivity means no chunk arrived within the inactivity window.
	ErrInactivity = errors.New("stream inactive")
	// ErrAlreadyRun means Run was called twice on the same session.
	ErrAlreadyRun = errors.New("session already run")
)

// State is the session lifecycle. Completed, Failed, and Aborted are
// terminal; a session never leaves them.
type State int

const (
	Idle State = iota
	Active
	Completed
	Failed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Defaults for Options zero values.
const (
	DefaultParseErrorCeiling = 10
	DefaultInactivityTimeout = 90 * time.Second
)

// Options tunes one session.
type Options struct {
	// ParseErrorCeiling is the number of malformed frames that fails the
	// session. Zero means DefaultParseErrorCeiling.
	ParseErrorCeiling int
	// InactivityTimeout fails the session when no chunk arrives within the
	// window. Zero means DefaultInactivityTimeout; negative disables it.
	InactivityTimeout time.Duration
	Logger            *slog.Logger
}

// Handlers maps event kinds to their single registered handler. Nil entries
// drop the event. Tap, if set, observes every event before its kind handler
// runs; relays use it to mirror the normalized stream.
type Handlers struct {
	Tap func(event.Event)

	Status           func(event.Status)
	ContentDelta     func(event.ContentDelta)
	Thinking         func(event.Thinking)
	ToolUse          func(event.ToolUse)
	ToolUpdate       func(event.ToolUpdate)
	ToolResult       func(event.ToolResult)
	TodoList         func(event.TodoList)
	TodoItemUpdate   func(event.TodoItemUpdate)
	DocumentUpdate   func(event.DocumentUpdate)
	SectionProgress  func(event.SectionProgress)
	ArticleDraft     func(event.ArticleDraft)
	ParagraphSummary func(event.ParagraphSummary)
	Complete         func(event.Complete)
	Error            func(event.Error)
	Finish           func(event.Finish)
}

// Outcome reports how a session ended, with its diagnostic counters.
type Outcome struct {
	State       State
	Err         error
	Frames      int
	ParseErrors int
	EmptyChunks int
}

// Session owns one read loop. Create one per request cycle; Run may be
// called exactly once.
type Session struct {
	handlers    Handlers
	opts        Options
	state       State
	dec         *sse.Decoder
	parseErrors int
	logger      *slog.Logger
}

// New creates a session in the Idle state.
func New(handlers Handlers, opts Options) *Session {
	if opts.ParseErrorCeiling == 0 {
		opts.ParseErrorCeiling = DefaultParseErrorCeiling
	}
	if opts.InactivityTimeout == 0 {
		opts.InactivityTimeout = DefaultInactivityTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		handlers: handlers,
		opts:     opts,
		dec:      sse.NewDecoder(),
		logger:   logger,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Run drives the stream to a terminal outcome exactly once. The body is
// closed on every exit path, handler panics included; closing it is the
// session's sole cleanup obligation. Cancellation is observed before each
// chunk and interrupts an in-flight read through the request context plus
// the deferred close.
func (s *Session) Run(ctx context.Context, body io.ReadCloser) Outcome {
	if s.state != Idle {
		return Outcome{State: s.state, Err: ErrAlreadyRun}
	}
	s.state = Active
	defer body.Close()

	chunks := make(chan []byte, 8)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(chunks)
		buf := make([]byte, 32*1024)
		for {
			n, err := body.Read(buf)
			if err != nil {
				if n > 0 {
					s.send(chunks, done, buf[:n])
				}
				readErr <- err
				return
			}
			if !s.send(chunks, done, buf[:n]) {
				return
			}
		}
	}()

	var timeout <-chan time.Time
	var timer *time.Timer
	if s.opts.InactivityTimeout > 0 {
		timer = time.NewTimer(s.opts.InactivityTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return s.finish(Aborted, ctx.Err())
		case <-timeout:
			return s.finish(Failed, fmt.Errorf("%w: no data within %s", ErrInactivity, s.opts.InactivityTimeout))
		case chunk, ok := <-chunks:
			if !ok {
				err := <-readErr
				if errors.Is(err, io.EOF) {
					if raw, rem := s.dec.Flush(); rem {
						if ferr := s.dispatch(raw); ferr != nil {
							return s.finish(Failed, ferr)
						}
					}
					return s.finish(Completed, nil)
				}
				if ctx.Err() != nil {
					return s.finish(Aborted, ctx.Err())
				}
				return s.finish(Failed, fmt.Errorf("read stream: %w", err))
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.opts.InactivityTimeout)
			}
			for _, raw := range s.dec.Feed(chunk) {
				if ferr := s.dispatch(raw); ferr != nil {
					return s.finish(Failed, ferr)
				}
			}
		}
	}
}

// send copies the chunk out of the reader's buffer and hands it to the loop,
// giving up once the session has returned.
func (s *Session) send(chunks chan<- []byte, done <-chan struct{}, b []byte) bool {
	c := append([]byte(nil), b...)
	select {
	case chunks <- c:
		return true
	case <-done:
		return false
	}
}

// dispatch parses one frame and applies it. Malformed frames are dropped and
// counted; the returned error is non-nil only when the ceiling is breached.
func (s *Session) dispatch(raw string) error {
	ev, err := event.Parse(raw)
	if err != nil {
		if errors.Is(err, event.ErrUnknownKind) {
			s.logger.Debug("skipping unrecognized frame", "error", err)
			return nil
		}
		s.parseErrors++
		s.logger.Warn("dropping malformed frame",
			"error", err, "parse_errors", s.parseErrors, "ceiling", s.opts.ParseErrorCeiling)
		if s.parseErrors >= s.opts.ParseErrorCeiling {
			return fmt.Errorf("%w: %d malformed frames", ErrParseExceeded, s.parseErrors)
		}
		return nil
	}

	Dispatch(s.handlers, ev)
	return nil
}

// Dispatch applies one event to a handler map: Tap first, then the kind's
// registered handler. The TUI reuses it to fold relayed events.
func Dispatch(h Handlers, ev event.Event) {
	if h.Tap != nil {
		h.Tap(ev)
	}

	switch ev := ev.(type) {
	case event.Status:
		call(h.Status, ev)
	case event.ContentDelta:
		call(h.ContentDelta, ev)
	case event.Thinking:
		call(h.Thinking, ev)
	case event.ToolUse:
		call(h.ToolUse, ev)
	case event.ToolUpdate:
		call(h.ToolUpdate, ev)
	case event.ToolResult:
		call(h.ToolResult, ev)
	case event.TodoList:
		call(h.TodoList, ev)
	case event.TodoItemUpdate:
		call(h.TodoItemUpdate, ev)
	case event.DocumentUpdate:
		call(h.DocumentUpdate, ev)
	case event.SectionProgress:
		call(h.SectionProgress, ev)
	case event.ArticleDraft:
		call(h.ArticleDraft, ev)
	case event.ParagraphSummary:
		call(h.ParagraphSummary, ev)
	case event.Complete:
		call(h.Complete, ev)
	case event.Error:
		call(h.Error, ev)
	case event.Finish:
		call(h.Finish, ev)
	}
}

func call[T event.Event](h func(T), ev T) {
	if h != nil {
		h(ev)
	}
}

func (s *Session) finish(state State, err error) Outcome {
	s.state = state
	return Outcome{
		State:       state,
		Err:         err,
		Frames:      s.dec.Frames(),
		ParseErrors: s.parseErrors,
		EmptyChunks: s.dec.EmptyChunks(),
	}
}
