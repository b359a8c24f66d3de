package nightdriver

// This module implements the client side of one strip controller.  A strip
// client accepts encoded frames from its site's render goroutine through a
// bounded queue and drains the queue to the controller from a dedicated
// sender goroutine, reconnecting with capped exponential backoff whenever
// the socket fails.

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	"github.com/ledgrid/nightdriver/model"
)

const (
	// QueueCapacity bounds the frames waiting on a strip, roughly one
	// second of animation at the default cadence
	QueueCapacity = 21

	// ConnectTimeout caps how long a dial to a controller may take
	ConnectTimeout = 5 * time.Second

	// WriteTimeout caps a single frame write on the socket
	WriteTimeout = 2 * time.Second

	// BackoffFloor and BackoffCeiling bound the reconnect delay which
	// doubles on every consecutive failure
	BackoffFloor   = 250 * time.Millisecond
	BackoffCeiling = 5 * time.Second

	// popWait bounds how long the sender blocks waiting for a frame before
	// rechecking for shutdown
	popWait = 100 * time.Millisecond
)

// StripState tracks where a strip client is in its connection lifecycle
type StripState int32

const (
	StripDisconnected StripState = iota
	StripConnecting
	StripConnected
	StripBackoff
)

func (state StripState) String() string {
	switch state {
	case StripConnecting:
		return "connecting"
	case StripConnected:
		return "connected"
	case StripBackoff:
		return "backoff"
	}
	return "disconnected"
}

// outFrame is an encoded frame waiting on the queue.  Frames are immutable
// once enqueued.
type outFrame struct {
	wire      []byte
	presentAt time.Time
}

// StripClient delivers encoded frames to one physical controller, in order,
// best effort, with bounded memory
type StripClient struct {
	cfg model.StripConfig

	queue chan outFrame
	state atomic.Int32

	sent     atomic.Uint64
	drops    atomic.Uint64
	connects atomic.Uint64

	// Scratch used to reverse the pixel slice for mirrored strips, only
	// ever touched by the render goroutine inside Enqueue
	reversed []model.Pixel
}

func NewStripClient(cfg model.StripConfig) (sc *StripClient) {
	sc = &StripClient{
		cfg:   cfg,
		queue: make(chan outFrame, QueueCapacity),
	}
	if cfg.Reversed {
		sc.reversed = make([]model.Pixel, cfg.Length)
	}
	return sc
}

// Name returns the configured strip name
func (sc *StripClient) Name() string {
	return sc.cfg.Name
}

// State returns the current connection state
func (sc *StripClient) State() StripState {
	return StripState(sc.state.Load())
}

// ReadyForData is the backpressure signal read by the render goroutine, it
// is true only while the controller is connected and the queue has room
func (sc *StripClient) ReadyForData() bool {
	return sc.State() == StripConnected && len(sc.queue) < QueueCapacity
}

// Enqueue encodes the strip's slice of the site buffer and queues it for
// delivery.  When the strip is not ready the frame is dropped and counted,
// the render goroutine is never blocked.
func (sc *StripClient) Enqueue(pixels []model.Pixel, presentAt time.Time, errorC chan<- errors.Error) {
	if !sc.ReadyForData() {
		sc.drops.Add(1)
		return
	}

	if sc.cfg.Reversed {
		for i, p := range pixels {
			sc.reversed[len(pixels)-1-i] = p
		}
		pixels = sc.reversed
	}

	wire, err := EncodeFrame(pixels, sc.cfg.ChannelMask, presentAt, sc.cfg.Compress)
	if err != nil {
		sc.drops.Add(1)
		select {
		case errorC <- err.With("strip", sc.cfg.Name):
		default:
		}
		return
	}

	select {
	case sc.queue <- outFrame{wire: wire, presentAt: presentAt}:
	default:
		sc.drops.Add(1)
	}
}

// Status snapshots the observable state of the strip
func (sc *StripClient) Status() (status model.StripStatus) {
	state := sc.State()
	return model.StripStatus{
		Name:       sc.cfg.Name,
		Addr:       sc.cfg.Addr(),
		State:      state.String(),
		Connected:  state == StripConnected,
		QueueDepth: len(sc.queue),
		Sent:       sc.sent.Load(),
		Drops:      sc.drops.Load(),
		Connects:   sc.connects.Load(),
	}
}

// Start launches the sender goroutine for the strip
func (sc *StripClient) Start(errorC chan<- errors.Error, quitC <-chan struct{}) {
	go sc.runSender(errorC, quitC)
}

func reportError(err errors.Error, errorC chan<- errors.Error) {
	select {
	case errorC <- err:
	case <-time.After(100 * time.Millisecond):
		fmt.Fprintln(os.Stderr, err.Error())
	}
}

// runSender owns the socket and the connection state machine.  The protocol
// is one way, the socket is never read, errors surface on the next write.
func (sc *StripClient) runSender(errorC chan<- errors.Error, quitC <-chan struct{}) {

	backoff := BackoffFloor
	var conn net.Conn

	defer func() {
		if conn != nil {
			conn.Close()
		}
		sc.state.Store(int32(StripDisconnected))
	}()

	fail := func(err errors.Error) {
		if conn != nil {
			conn.Close()
			conn = nil
		}
		sc.state.Store(int32(StripBackoff))
		reportError(err.With("strip", sc.cfg.Name).With("addr", sc.cfg.Addr()), errorC)

		select {
		case <-time.After(backoff):
		case <-quitC:
		}
		if backoff *= 2; backoff > BackoffCeiling {
			backoff = BackoffCeiling
		}
	}

	for {
		select {
		case <-quitC:
			return
		default:
		}

		if conn == nil {
			sc.state.Store(int32(StripConnecting))
			newConn, errGo := net.DialTimeout("tcp", sc.cfg.Addr(), ConnectTimeout)
			if errGo != nil {
				fail(errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime()))
				continue
			}
			if tcpConn, isTCP := newConn.(*net.TCPConn); isTCP {
				tcpConn.SetNoDelay(true)
			}
			conn = newConn
			backoff = BackoffFloor
			sc.connects.Add(1)
			sc.state.Store(int32(StripConnected))
		}

		select {
		case frame := <-sc.queue:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if _, errGo := conn.Write(frame.wire); errGo != nil {
				// The in flight frame may have been partially written and
				// is discarded, the rest of the queue survives the reconnect
				fail(errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime()))
				continue
			}
			sc.sent.Add(1)

		case <-time.After(popWait):

		case <-quitC:
			return
		}
	}
}
