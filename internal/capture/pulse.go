package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
)

// PulseSource captures the default sink's monitor through parec, so the
// recording hears exactly what the speakers play.
type PulseSource struct {
	rate int
}

// NewPulseSource returns a source reading float32 samples at sampleRate.
func NewPulseSource(sampleRate int) *PulseSource {
	return &PulseSource{rate: sampleRate}
}

// Open resolves the default sink's monitor device and starts parec on it.
// Any failure before samples flow counts as a refused grant.
func (p *PulseSource) Open(ctx context.Context) (Stream, error) {
	monitor, err := defaultSinkMonitor(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDenied, err)
	}

	cmd := exec.Command("parec",
		"--format=float32le",
		"--rate="+strconv.Itoa(p.rate),
		"--channels=1",
		"--device="+monitor,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDenied, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDenied, err)
	}

	log.Debug("capture grant", "device", monitor)

	s := &pulseStream{
		cmd:    cmd,
		stdout: stdout,
		blocks: make(chan []float32, 8),
	}
	go s.pump()
	return s, nil
}

func defaultSinkMonitor(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "pactl", "get-default-sink").Output()
	if err != nil {
		return "", fmt.Errorf("querying default sink: %w", err)
	}
	sink := strings.TrimSpace(string(out))
	if sink == "" {
		return "", fmt.Errorf("no default sink")
	}
	return sink + ".monitor", nil
}

type pulseStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	blocks chan []float32
}

func (s *pulseStream) Blocks() <-chan []float32 {
	return s.blocks
}

func (s *pulseStream) pump() {
	defer close(s.blocks)

	buf := make([]byte, BlockSize*4)
	for {
		if _, err := io.ReadFull(s.stdout, buf); err != nil {
			return
		}
		block := make([]float32, BlockSize)
		for i := range block {
			bits := binary.LittleEndian.Uint32(buf[i*4:])
			block[i] = math.Float32frombits(bits)
		}
		s.blocks <- block
	}
}

// Close stops parec. The pump drains to EOF and closes the block channel.
func (s *pulseStream) Close() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
	}
	err := s.cmd.Wait()
	// parec exits nonzero when terminated; that is the normal shutdown.
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return err
	}
	return nil
}
