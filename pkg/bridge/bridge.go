// Package bridge talks to the I/O bridge board that owns the sensor ADC and
// the motor PWM outputs.
//
// The board speaks a line-oriented ASCII protocol, one response per request:
//
//	V              -> LTB <version>
//	A <channel>    -> <value>
//	P <pin> <duty> -> OK
//	D <pin> <0|1>  -> OK
//
// Any request may be answered with "ERR <message>".
//
// A reply that misses the read timeout may still arrive later. The bridge
// then discards pending input before its next request, so every reply is
// matched to the request that caused it.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrProtocol is returned when the board sends a malformed response.
	ErrProtocol = errors.New("bridge protocol error")
	// ErrTimeout is returned when the board does not answer within the
	// port's read timeout.
	ErrTimeout = errors.New("bridge response timeout")
)

// DeviceError is an error reported by the board itself.
type DeviceError struct {
	Request string
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("bridge rejected %q: %s", e.Request, e.Message)
}

const (
	versionPrefix = "LTB "

	// maxLineLength bounds a single response line.
	maxLineLength = 256
	// maxDrain bounds how much stale input is discarded while resyncing.
	maxDrain = 4 * maxLineLength
)

// inputResetter is implemented by serial.Port.
type inputResetter interface {
	ResetInputBuffer() error
}

// Bridge is a connection to the I/O bridge board. It implements
// robot.AnalogSource and robot.Actuator. Requests are serialized.
type Bridge struct {
	port   io.ReadWriteCloser
	logger *zap.Logger

	mu    sync.Mutex
	buf   []byte
	chunk [64]byte
	stale bool // a reply may still be in flight
}

// New wraps an already opened port.
func New(port io.ReadWriteCloser, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		port:   port,
		logger: logger,
	}
}

// Close closes the underlying port.
func (b *Bridge) Close() error {
	return b.port.Close()
}

// Ping asks the board for its firmware version.
func (b *Bridge) Ping(ctx context.Context) (string, error) {
	resp, err := b.request(ctx, "V")
	if err != nil {
		return "", err
	}
	version, ok := strings.CutPrefix(resp, versionPrefix)
	if !ok {
		return "", fmt.Errorf("%w: unexpected ping response %q", ErrProtocol, resp)
	}
	return version, nil
}

// ReadAnalog samples an analog channel.
func (b *Bridge) ReadAnalog(ctx context.Context, channel int) (int, error) {
	resp, err := b.request(ctx, fmt.Sprintf("A %d", channel))
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(resp)
	if err != nil {
		return 0, fmt.Errorf("%w: analog value %q", ErrProtocol, resp)
	}
	return v, nil
}

// WritePWM sets the duty cycle of a PWM pin.
func (b *Bridge) WritePWM(ctx context.Context, pin int, duty uint8) error {
	return b.expectOK(ctx, fmt.Sprintf("P %d %d", pin, duty))
}

// WriteDigital drives a digital pin.
func (b *Bridge) WriteDigital(ctx context.Context, pin int, high bool) error {
	v := 0
	if high {
		v = 1
	}
	return b.expectOK(ctx, fmt.Sprintf("D %d %d", pin, v))
}

func (b *Bridge) expectOK(ctx context.Context, req string) error {
	resp, err := b.request(ctx, req)
	if err != nil {
		return err
	}
	if resp != "OK" {
		return fmt.Errorf("%w: %q answered %q", ErrProtocol, req, resp)
	}
	return nil
}

func (b *Bridge) request(ctx context.Context, req string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stale {
		if err := b.resync(); err != nil {
			return "", fmt.Errorf("resync before %q: %w", req, err)
		}
	}

	if _, err := io.WriteString(b.port, req+"\n"); err != nil {
		return "", fmt.Errorf("write %q: %w", req, err)
	}

	line, err := b.readLine()
	if err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, ErrProtocol) {
			b.stale = true
		}
		return "", fmt.Errorf("read response to %q: %w", req, err)
	}
	resp := strings.TrimSpace(line)
	b.logger.Debug("bridge exchange", zap.String("request", req), zap.String("response", resp))

	if msg, ok := strings.CutPrefix(resp, "ERR"); ok {
		return "", &DeviceError{Request: req, Message: strings.TrimSpace(msg)}
	}
	return resp, nil
}

// readLine returns the next response line. A serial port with a read
// timeout returns (0, nil) when nothing arrived in time.
func (b *Bridge) readLine() (string, error) {
	for {
		if i := bytes.IndexByte(b.buf, '\n'); i >= 0 {
			line := string(b.buf[:i])
			b.buf = b.buf[i+1:]
			return line, nil
		}
		if len(b.buf) >= maxLineLength {
			b.buf = nil
			return "", fmt.Errorf("%w: response longer than %d bytes", ErrProtocol, maxLineLength)
		}
		n, err := b.port.Read(b.chunk[:])
		b.buf = append(b.buf, b.chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		if n == 0 {
			return "", ErrTimeout
		}
	}
}

// resync drops buffered input and reads until the line goes idle, so a late
// reply to an earlier request is not taken as the answer to the next one.
func (b *Bridge) resync() error {
	b.buf = nil
	if r, ok := b.port.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return fmt.Errorf("reset input: %w", err)
		}
	}

	drained := 0
	for drained <= maxDrain {
		n, err := b.port.Read(b.chunk[:])
		drained += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if n == 0 {
			if drained > 0 {
				b.logger.Debug("discarded stale bridge input", zap.Int("bytes", drained))
			}
			b.stale = false
			return nil
		}
	}
	return fmt.Errorf("%w: line not idle after %d bytes", ErrProtocol, drained)
}
