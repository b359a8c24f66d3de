package nightdriver

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/karlmutch/errors"

	"github.com/ledgrid/nightdriver/model"
)

func testStripConfig(t *testing.T, addr string) (cfg model.StripConfig) {
	host, portStr, errGo := net.SplitHostPort(addr)
	if errGo != nil {
		t.Fatal(errGo)
	}
	port, _ := strconv.Atoi(portStr)
	return model.StripConfig{
		Host:        host,
		Port:        port,
		Name:        "test-strip",
		Length:      10,
		Offset:      0,
		ChannelMask: model.DefaultChannelMask,
	}
}

// readInner pulls one uncompressed pixel message off the controller side of
// the connection
func readInner(t *testing.T, rd *bufio.Reader) (pixels []model.Pixel, presentAt time.Time) {
	header := make([]byte, 24)
	if _, errGo := io.ReadFull(rd, header); errGo != nil {
		t.Fatal(errGo)
	}
	payload := make([]byte, 3*binary.LittleEndian.Uint32(header[4:]))
	if _, errGo := io.ReadFull(rd, payload); errGo != nil {
		t.Fatal(errGo)
	}

	pixels, _, presentAt, err := DecodeFrame(append(header, payload...))
	if err != nil {
		t.Fatal(err.Error())
	}
	return pixels, presentAt
}

func waitFor(t *testing.T, deadline time.Duration, what string, cond func() bool) {
	limit := time.Now().Add(deadline)
	for time.Now().Before(limit) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for " + what)
}

func TestStripDropsWhenDisconnected(t *testing.T) {
	sc := NewStripClient(testStripConfig(t, "127.0.0.1:49152"))
	errorC := make(chan errors.Error, 1)

	if sc.ReadyForData() {
		t.Fatal("a disconnected strip must not accept data")
	}

	sc.Enqueue(solidPixels(10, model.Red), time.Now().Add(BufferLatency), errorC)

	status := sc.Status()
	if status.Drops != 1 {
		t.Fatalf("expected 1 drop, counted %d", status.Drops)
	}
	if status.QueueDepth != 0 {
		t.Fatalf("dropped frame reached the queue, depth %d", status.QueueDepth)
	}
}

func TestStripBackpressure(t *testing.T) {
	sc := NewStripClient(testStripConfig(t, "127.0.0.1:49152"))
	errorC := make(chan errors.Error, 1)

	// Pretend the sender connected and then stalled without draining
	sc.state.Store(int32(StripConnected))

	presentAt := time.Now().Add(BufferLatency)
	for i := 0; i < QueueCapacity+3; i++ {
		sc.Enqueue(solidPixels(10, model.Green), presentAt, errorC)
	}

	status := sc.Status()
	if status.QueueDepth != QueueCapacity {
		t.Fatalf("queue depth %d exceeded its bound %d", status.QueueDepth, QueueCapacity)
	}
	if status.Drops != 3 {
		t.Fatalf("expected 3 drops past the full queue, counted %d", status.Drops)
	}
	if sc.ReadyForData() {
		t.Fatal("a full queue must report not ready")
	}
}

func TestStripDeliversInOrder(t *testing.T) {
	listener, errGo := net.Listen("tcp", "127.0.0.1:0")
	if errGo != nil {
		t.Fatal(errGo)
	}
	defer listener.Close()

	sc := NewStripClient(testStripConfig(t, listener.Addr().String()))
	errorC := make(chan errors.Error, 4)
	quitC := make(chan struct{})
	defer close(quitC)

	sc.Start(errorC, quitC)

	conn, errGo := listener.Accept()
	if errGo != nil {
		t.Fatal(errGo)
	}
	defer conn.Close()

	waitFor(t, 2*time.Second, "the strip to connect", func() bool { return sc.State() == StripConnected })

	presentAt := time.Now().Add(BufferLatency)
	for i := 1; i <= 3; i++ {
		sc.Enqueue(solidPixels(10, model.Pixel{R: uint8(i)}), presentAt, errorC)
	}

	rd := bufio.NewReader(conn)
	for i := 1; i <= 3; i++ {
		pixels, _ := readInner(t, rd)
		if pixels[0].R != uint8(i) {
			t.Fatalf("frame %d arrived out of order, leading pixel %d", i, pixels[0].R)
		}
	}

	waitFor(t, time.Second, "the sent counter", func() bool { return sc.Status().Sent == 3 })
}

func TestStripReconnects(t *testing.T) {
	listener, errGo := net.Listen("tcp", "127.0.0.1:0")
	if errGo != nil {
		t.Fatal(errGo)
	}
	defer listener.Close()

	sc := NewStripClient(testStripConfig(t, listener.Addr().String()))
	errorC := make(chan errors.Error, 16)
	quitC := make(chan struct{})
	defer close(quitC)

	// Drain reconnection errors so the sender is never stalled on reporting
	go func() {
		for {
			select {
			case <-errorC:
			case <-quitC:
				return
			}
		}
	}()

	sc.Start(errorC, quitC)

	first, errGo := listener.Accept()
	if errGo != nil {
		t.Fatal(errGo)
	}
	waitFor(t, 2*time.Second, "the first connection", func() bool { return sc.State() == StripConnected })

	// Kill the controller side, the next writes fail and the sender backs
	// off and redials
	first.Close()

	acceptedC := make(chan net.Conn, 1)
	go func() {
		conn, errGo := listener.Accept()
		if errGo == nil {
			acceptedC <- conn
		}
	}()

	go func() {
		// Keep offering frames so the sender discovers the dead socket
		for {
			select {
			case <-quitC:
				return
			default:
				sc.Enqueue(solidPixels(10, model.Blue), time.Now().Add(BufferLatency), errorC)
				time.Sleep(20 * time.Millisecond)
			}
		}
	}()

	var second net.Conn
	select {
	case second = <-acceptedC:
	case <-time.After(10 * time.Second):
		t.Fatal("the strip never reconnected")
	}
	defer second.Close()

	waitFor(t, 2*time.Second, "the reconnect to settle", func() bool { return sc.State() == StripConnected })
	if sc.Status().Connects < 2 {
		t.Fatalf("expected at least 2 connects, counted %d", sc.Status().Connects)
	}

	// Frames flow again on the new connection
	rd := bufio.NewReader(second)
	pixels, _ := readInner(t, rd)
	if pixels[0] != model.Blue {
		t.Fatalf("unexpected frame after reconnect %+v", pixels[0])
	}
}

func TestStripReversesSlice(t *testing.T) {
	listener, errGo := net.Listen("tcp", "127.0.0.1:0")
	if errGo != nil {
		t.Fatal(errGo)
	}
	defer listener.Close()

	cfg := testStripConfig(t, listener.Addr().String())
	cfg.Reversed = true
	sc := NewStripClient(cfg)

	errorC := make(chan errors.Error, 4)
	quitC := make(chan struct{})
	defer close(quitC)

	sc.Start(errorC, quitC)

	conn, errGo := listener.Accept()
	if errGo != nil {
		t.Fatal(errGo)
	}
	defer conn.Close()

	waitFor(t, 2*time.Second, "the strip to connect", func() bool { return sc.State() == StripConnected })

	ramp := make([]model.Pixel, 10)
	for i := range ramp {
		ramp[i] = model.Pixel{R: uint8(i)}
	}
	sc.Enqueue(ramp, time.Now().Add(BufferLatency), errorC)

	pixels, _ := readInner(t, bufio.NewReader(conn))
	for i := range pixels {
		if pixels[i].R != uint8(len(ramp)-1-i) {
			t.Fatalf("pixel %d not reversed, got %d", i, pixels[i].R)
		}
	}
}
