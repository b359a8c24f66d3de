package nightdriver

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/ledgrid/nightdriver/model"
)

func solidPixels(n int, c model.Pixel) (pixels []model.Pixel) {
	pixels = make([]model.Pixel, n)
	for i := range pixels {
		pixels[i] = c
	}
	return pixels
}

func TestEncodeFrameGoldenBytes(t *testing.T) {
	enqueueAt := time.Unix(1700000000, 0).UTC()
	presentAt := enqueueAt.Add(BufferLatency)

	wire, err := EncodeFrame(solidPixels(10, model.Red), 0xFFFF, presentAt, false)
	if err != nil {
		t.Fatal(err.Error())
	}

	if len(wire) != 24+30 {
		t.Fatalf("unexpected frame length %d", len(wire))
	}

	// command, channel mask, pixel count
	if !bytes.Equal(wire[:8], []byte{0x03, 0x00, 0xFF, 0xFF, 0x0A, 0x00, 0x00, 0x00}) {
		t.Fatalf("unexpected header % X", wire[:8])
	}

	if seconds := binary.LittleEndian.Uint64(wire[8:]); seconds != 1700000001 {
		t.Fatalf("seconds field carries %d, want the enqueue time plus the buffer latency", seconds)
	}
	if micros := binary.LittleEndian.Uint64(wire[16:]); micros != 0 {
		t.Fatalf("micros field carries %d, want 0", micros)
	}

	for i := 0; i < 10; i++ {
		if !bytes.Equal(wire[24+3*i:][:3], []byte{0xFF, 0x00, 0x00}) {
			t.Fatalf("pixel %d payload wrong % X", i, wire[24+3*i:][:3])
		}
	}
}

func TestEncodeFrameLengthField(t *testing.T) {
	for _, n := range []int{1, 7, 144} {
		wire, err := EncodeFrame(solidPixels(n, model.Green), 0x0001, time.Now(), false)
		if err != nil {
			t.Fatal(err.Error())
		}

		payload := len(wire) - 24
		if field := binary.LittleEndian.Uint32(wire[4:]); int(field) != payload/3 || payload != 3*int(field) {
			t.Fatalf("length field %d inconsistent with payload of %d bytes", field, payload)
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	pixels := []model.Pixel{
		{R: 1, G: 2, B: 3},
		{R: 0xFF, G: 0x80, B: 0x00},
		{R: 0x10, G: 0x20, B: 0x30},
	}
	presentAt := time.Unix(1700000000, 123456000).UTC()

	wire, err := EncodeFrame(pixels, 0x0003, presentAt, false)
	if err != nil {
		t.Fatal(err.Error())
	}

	got, mask, at, err := DecodeFrame(wire)
	if err != nil {
		t.Fatal(err.Error())
	}
	if mask != 0x0003 {
		t.Fatalf("channel mask mangled, got %04X", mask)
	}
	if !at.Equal(presentAt) {
		t.Fatalf("presentation time mangled, got %v want %v", at, presentAt)
	}
	if len(got) != len(pixels) {
		t.Fatalf("pixel count mangled, got %d", len(got))
	}
	for i := range pixels {
		if got[i] != pixels[i] {
			t.Fatalf("pixel %d mangled, got %+v want %+v", i, got[i], pixels[i])
		}
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	pixels := make([]model.Pixel, 144)
	for i := range pixels {
		pixels[i] = model.HSV(float64(i)*2.5, 1, 1)
	}
	presentAt := time.Unix(1700000000, 0).UTC().Add(BufferLatency)

	wire, err := EncodeFrame(pixels, 0xFFFF, presentAt, true)
	if err != nil {
		t.Fatal(err.Error())
	}

	if magic := binary.LittleEndian.Uint32(wire[0:]); magic != CompressedFrameMagic {
		t.Fatalf("envelope magic wrong %08X", magic)
	}
	if tag := binary.LittleEndian.Uint32(wire[12:]); tag != CompressedFrameTag {
		t.Fatalf("envelope tag wrong %08X", tag)
	}

	inner, err := DecodeCompressed(wire)
	if err != nil {
		t.Fatal(err.Error())
	}
	if size := binary.LittleEndian.Uint32(wire[8:]); int(size) != len(inner) {
		t.Fatalf("uncompressed size field %d does not match %d inflated bytes", size, len(inner))
	}

	// The inflated message must be byte identical to the uncompressed
	// encoding of the same frame
	bare, err := EncodeFrame(pixels, 0xFFFF, presentAt, false)
	if err != nil {
		t.Fatal(err.Error())
	}
	if !bytes.Equal(inner, bare) {
		t.Fatal("inflated message differs from the uncompressed encoding")
	}

	got, _, _, err := DecodeFrame(inner)
	if err != nil {
		t.Fatal(err.Error())
	}
	for i := range pixels {
		if got[i] != pixels[i] {
			t.Fatalf("pixel %d mangled through compression", i)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, _, err := DecodeFrame([]byte{0x01, 0x02}); err == nil {
		t.Fatal("truncated message accepted")
	}
	if _, _, _, err := DecodeFrame(make([]byte, 24)); err == nil {
		t.Fatal("unknown command accepted")
	}
	if _, err := DecodeCompressed(make([]byte, 16)); err == nil {
		t.Fatal("bad envelope magic accepted")
	}
}
