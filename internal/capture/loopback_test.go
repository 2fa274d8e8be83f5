package capture

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/dgnsrekt/duet/internal/audio"
)

func openLoopback(t *testing.T) *loopbackStream {
	t.Helper()
	src := NewLoopbackSource(audio.NewPlayer(), 24000)
	stream, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return stream.(*loopbackStream)
}

func pcmOf(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestLoopbackChunksIntoBlocks(t *testing.T) {
	s := openLoopback(t)

	// One and a half blocks in a single clip.
	clip := make([]int16, BlockSize+BlockSize/2)
	for i := range clip {
		clip[i] = 1000
	}
	s.ingest(pcmOf(clip...), 24000)

	select {
	case b := <-s.Blocks():
		if len(b) != BlockSize {
			t.Fatalf("block length = %d, want %d", len(b), BlockSize)
		}
	default:
		t.Fatal("no full block after ingesting 1.5 blocks")
	}

	// The half block stays pending until Close pads and flushes it.
	select {
	case <-s.Blocks():
		t.Fatal("partial block delivered before Close")
	default:
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	tail, ok := <-s.Blocks()
	if !ok {
		t.Fatal("tail block missing after Close")
	}
	if len(tail) != BlockSize {
		t.Fatalf("tail length = %d, want %d", len(tail), BlockSize)
	}
	if tail[BlockSize/2] != 0 {
		t.Error("tail padding is not silence")
	}

	if _, ok := <-s.Blocks(); ok {
		t.Error("channel still open after Close")
	}
}

func TestLoopbackCarriesRemainderAcrossClips(t *testing.T) {
	s := openLoopback(t)

	half := make([]int16, BlockSize/2)
	s.ingest(pcmOf(half...), 24000)
	select {
	case <-s.Blocks():
		t.Fatal("block delivered from half a clip")
	default:
	}

	s.ingest(pcmOf(half...), 24000)
	select {
	case b := <-s.Blocks():
		if len(b) != BlockSize {
			t.Fatalf("block length = %d, want %d", len(b), BlockSize)
		}
	default:
		t.Fatal("no block after two half clips")
	}
}

func TestLoopbackIgnoresClipsAfterClose(t *testing.T) {
	s := openLoopback(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	s.ingest(pcmOf(make([]int16, BlockSize)...), 24000)
	if _, ok := <-s.Blocks(); ok {
		t.Error("ingest after Close delivered a block")
	}
}

func TestPCM16ToFloat32(t *testing.T) {
	tests := []struct {
		name string
		in   int16
		want float32
	}{
		{"negative full scale", -32768, -1},
		{"positive full scale", 32767, 1},
		{"zero", 0, 0},
		{"half negative", -16384, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := pcm16ToFloat32(pcmOf(tt.in))
			if len(out) != 1 {
				t.Fatalf("got %d samples, want 1", len(out))
			}
			if math.Abs(float64(out[0]-tt.want)) > 1e-4 {
				t.Errorf("pcm16ToFloat32(%d) = %v, want %v", tt.in, out[0], tt.want)
			}
		})
	}
}

func TestResampleLinear(t *testing.T) {
	in := []float32{0, 0.5, 1, 0.5}

	if got := resampleLinear(in, 24000, 24000); len(got) != len(in) {
		t.Errorf("identity resample changed length: %d", len(got))
	}

	up := resampleLinear(in, 12000, 24000)
	if len(up) != 8 {
		t.Errorf("upsample length = %d, want 8", len(up))
	}
	down := resampleLinear(in, 24000, 12000)
	if len(down) != 2 {
		t.Errorf("downsample length = %d, want 2", len(down))
	}
}
