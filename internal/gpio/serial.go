//go:build !tinygo

package gpio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SerialDriver reports pin levels as text lines on a serial link, for a
// board-side helper (or a terminal) to mirror:
//
//	pin=13 value=1
type SerialDriver struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	levels map[Pin]bool
}

// NewSerialDriver writes pin lines to w.
func NewSerialDriver(w io.Writer) *SerialDriver {
	d := &SerialDriver{w: w, levels: make(map[Pin]bool)}
	if c, ok := w.(io.Closer); ok {
		d.closer = c
	}
	return d
}

// OpenSerial opens a serial port and returns a driver writing to it.
func OpenSerial(device string, baud int) (*SerialDriver, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return NewSerialDriver(port), nil
}

func (d *SerialDriver) ConfigureOutput(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.levels[pin]; ok {
		return nil
	}
	d.levels[pin] = false
	return d.writeLocked(pin, false)
}

func (d *SerialDriver) SetPin(pin Pin, high bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.levels[pin]; !ok {
		return ErrNotConfigured
	}
	d.levels[pin] = high
	return d.writeLocked(pin, high)
}

func (d *SerialDriver) GetPin(pin Pin) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.levels[pin]
	if !ok {
		return false, ErrNotConfigured
	}
	return v, nil
}

func (d *SerialDriver) writeLocked(pin Pin, high bool) error {
	v := 0
	if high {
		v = 1
	}
	if _, err := fmt.Fprintf(d.w, "pin=%d value=%d\n", pin, v); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// Close closes the port if the driver owns one.
func (d *SerialDriver) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
