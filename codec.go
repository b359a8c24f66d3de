package nightdriver

// This module implements the wire framing understood by NightDriver strip
// controllers.  Frames are timestamped pixel buffers, optionally wrapped in
// a DEFLATE compressed envelope, always little endian.

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	"github.com/klauspost/compress/flate"

	"github.com/ledgrid/nightdriver/model"
)

const (
	// WifiCommandPixelData64 identifies a pixel data message carrying 64 bit
	// second and microsecond presentation timestamps
	WifiCommandPixelData64 = uint16(3)

	// CompressedFrameMagic marks the start of a compressed frame envelope
	CompressedFrameMagic = uint32(0x44415645)

	// CompressedFrameTag occupies the reserved word of the envelope and is
	// validated by the controller
	CompressedFrameTag = uint32(0x12345678)

	// BufferLatency is how far ahead of wall clock frames are timestamped,
	// giving the controller a queue of future frames to smooth jitter with
	BufferLatency = time.Second

	innerHeaderLen      = 2 + 2 + 4 + 8 + 8
	compressedHeaderLen = 4 + 4 + 4 + 4
)

// EncodeFrame packs a pixel slice and its intended presentation time into
// the controller wire format.  When compress is enabled the message is
// wrapped in the compressed envelope, otherwise the bare pixel message is
// returned.
func EncodeFrame(pixels []model.Pixel, channelMask uint16, presentAt time.Time, compress bool) (wire []byte, err errors.Error) {
	if uint64(len(pixels)) > math.MaxUint32 {
		return nil, errors.New("pixel count exceeds the wire format").With("pixels", len(pixels)).With("stack", stack.Trace().TrimRuntime())
	}

	inner := make([]byte, innerHeaderLen+3*len(pixels))
	binary.LittleEndian.PutUint16(inner[0:], WifiCommandPixelData64)
	binary.LittleEndian.PutUint16(inner[2:], channelMask)
	binary.LittleEndian.PutUint32(inner[4:], uint32(len(pixels)))

	utc := presentAt.UTC()
	binary.LittleEndian.PutUint64(inner[8:], uint64(utc.Unix()))
	binary.LittleEndian.PutUint64(inner[16:], uint64(utc.Nanosecond()/1000))

	pos := innerHeaderLen
	for _, p := range pixels {
		inner[pos] = p.R
		inner[pos+1] = p.G
		inner[pos+2] = p.B
		pos += 3
	}

	if !compress {
		return inner, nil
	}

	blob := &bytes.Buffer{}
	zw, errGo := flate.NewWriter(blob, flate.BestSpeed)
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	if _, errGo = zw.Write(inner); errGo != nil {
		return nil, errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	if errGo = zw.Close(); errGo != nil {
		return nil, errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}

	wire = make([]byte, compressedHeaderLen, compressedHeaderLen+blob.Len())
	binary.LittleEndian.PutUint32(wire[0:], CompressedFrameMagic)
	binary.LittleEndian.PutUint32(wire[4:], uint32(blob.Len()))
	binary.LittleEndian.PutUint32(wire[8:], uint32(len(inner)))
	binary.LittleEndian.PutUint32(wire[12:], CompressedFrameTag)
	wire = append(wire, blob.Bytes()...)

	return wire, nil
}

// DecodeCompressed unwraps a compressed frame envelope and inflates the
// pixel message held inside it
func DecodeCompressed(wire []byte) (inner []byte, err errors.Error) {
	if len(wire) < compressedHeaderLen {
		return nil, errors.New("compressed frame truncated").With("len", len(wire)).With("stack", stack.Trace().TrimRuntime())
	}
	if magic := binary.LittleEndian.Uint32(wire[0:]); magic != CompressedFrameMagic {
		return nil, errors.New("compressed frame magic mismatch").With("magic", magic).With("stack", stack.Trace().TrimRuntime())
	}
	if tag := binary.LittleEndian.Uint32(wire[12:]); tag != CompressedFrameTag {
		return nil, errors.New("compressed frame tag mismatch").With("tag", tag).With("stack", stack.Trace().TrimRuntime())
	}

	compressedLen := binary.LittleEndian.Uint32(wire[4:])
	uncompressedLen := binary.LittleEndian.Uint32(wire[8:])
	if uint32(len(wire)-compressedHeaderLen) < compressedLen {
		return nil, errors.New("compressed frame body truncated").With("stack", stack.Trace().TrimRuntime())
	}

	zr := flate.NewReader(bytes.NewReader(wire[compressedHeaderLen : compressedHeaderLen+int(compressedLen)]))
	defer zr.Close()

	inner, errGo := io.ReadAll(zr)
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("stack", stack.Trace().TrimRuntime())
	}
	if uint32(len(inner)) != uncompressedLen {
		return nil, errors.New("inflated frame length mismatch").With("expected", uncompressedLen).With("actual", len(inner)).With("stack", stack.Trace().TrimRuntime())
	}
	return inner, nil
}

// DecodeFrame unpacks a bare pixel message back into its pixels, channel
// mask, and presentation time
func DecodeFrame(wire []byte) (pixels []model.Pixel, channelMask uint16, presentAt time.Time, err errors.Error) {
	if len(wire) < innerHeaderLen {
		return nil, 0, time.Time{}, errors.New("pixel message truncated").With("len", len(wire)).With("stack", stack.Trace().TrimRuntime())
	}
	if cmd := binary.LittleEndian.Uint16(wire[0:]); cmd != WifiCommandPixelData64 {
		return nil, 0, time.Time{}, errors.New("unknown wire command").With("command", cmd).With("stack", stack.Trace().TrimRuntime())
	}

	channelMask = binary.LittleEndian.Uint16(wire[2:])
	count := binary.LittleEndian.Uint32(wire[4:])
	seconds := binary.LittleEndian.Uint64(wire[8:])
	micros := binary.LittleEndian.Uint64(wire[16:])

	if uint64(len(wire)-innerHeaderLen) < uint64(count)*3 {
		return nil, 0, time.Time{}, errors.New("pixel payload truncated").With("pixels", count).With("len", len(wire)).With("stack", stack.Trace().TrimRuntime())
	}

	presentAt = time.Unix(int64(seconds), int64(micros)*1000).UTC()

	pixels = make([]model.Pixel, count)
	pos := innerHeaderLen
	for i := range pixels {
		pixels[i] = model.Pixel{R: wire[pos], G: wire[pos+1], B: wire[pos+2]}
		pos += 3
	}
	return pixels, channelMask, presentAt, nil
}
