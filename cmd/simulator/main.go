package main

// A stand in for a physical strip controller.  The simulator accepts the
// frame stream a real controller would, splits it back into messages,
// inflates compressed envelopes, and reports what it would have displayed
// and when.  Useful for exercising the server without hardware on the bench.

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/mgutz/logxi"

	"github.com/ledgrid/nightdriver"
)

var (
	listen = flag.String("listen", ":49152", "Address to bind to")

	// create Logger interface
	logW = logxi.NewLogger(logxi.NewConcurrentWriter(os.Stdout), "nightdriver-simulator")
)

func main() {

	flag.Parse()

	listener, err := net.Listen("tcp", *listen)
	if err != nil {
		logxi.Fatal(err.Error())
		os.Exit(-1)
	}
	logW.Info(fmt.Sprintf("listening on %s", *listen))

	for {
		conn, err := listener.Accept()
		if err != nil {
			logW.Warn(err.Error())
			continue
		}
		go serveConn(conn)
	}
}

// serveConn consumes the one way frame stream from a single server
// connection until EOF or a framing error
func serveConn(conn net.Conn) {
	defer conn.Close()

	logW.Info(fmt.Sprintf("connection from %s", conn.RemoteAddr()))

	rd := bufio.NewReader(conn)
	for {
		wire, err := readMessage(rd)
		if err != nil {
			if err != io.EOF {
				logW.Warn(err.Error())
			}
			return
		}

		if binary.LittleEndian.Uint32(wire) == nightdriver.CompressedFrameMagic {
			inner, errGo := nightdriver.DecodeCompressed(wire)
			if errGo != nil {
				logW.Warn(errGo.Error())
				return
			}
			wire = inner
		}

		pixels, mask, presentAt, errGo := nightdriver.DecodeFrame(wire)
		if errGo != nil {
			logW.Warn(errGo.Error())
			return
		}

		logW.Debug(fmt.Sprintf("frame %d pixels mask 0x%04X presenting in %v",
			len(pixels), mask, time.Until(presentAt).Round(time.Millisecond)))
	}
}

// readMessage splits the next message off the stream.  The leading word
// distinguishes a compressed envelope from a bare pixel message.
func readMessage(rd *bufio.Reader) (wire []byte, err error) {

	head := make([]byte, 4)
	if _, err = io.ReadFull(rd, head); err != nil {
		return nil, err
	}

	if binary.LittleEndian.Uint32(head) == nightdriver.CompressedFrameMagic {
		// magic, compressed size, uncompressed size, tag, then the blob
		rest := make([]byte, 12)
		if _, err = io.ReadFull(rd, rest); err != nil {
			return nil, err
		}
		blob := make([]byte, binary.LittleEndian.Uint32(rest[0:]))
		if _, err = io.ReadFull(rd, blob); err != nil {
			return nil, err
		}
		wire = append(append(head, rest...), blob...)
		return wire, nil
	}

	if binary.LittleEndian.Uint16(head) == nightdriver.WifiCommandPixelData64 {
		// command and channel mask are in hand, read the rest of the fixed
		// header then the pixel payload
		rest := make([]byte, 20)
		if _, err = io.ReadFull(rd, rest); err != nil {
			return nil, err
		}
		payload := make([]byte, 3*binary.LittleEndian.Uint32(rest[0:]))
		if _, err = io.ReadFull(rd, payload); err != nil {
			return nil, err
		}
		wire = append(append(head, rest...), payload...)
		return wire, nil
	}

	return nil, fmt.Errorf("unrecognized message framing 0x%X", head)
}
