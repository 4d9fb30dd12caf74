// Package gpio is the pin-output collaborator used by task bodies. The
// scheduler never depends on it.
package gpio

import (
	"errors"
	"fmt"
)

// Pin identifies a hardware GPIO pin number.
type Pin uint32

// ErrNotConfigured is returned when a pin is used before ConfigureOutput.
var ErrNotConfigured = errors.New("pin not configured as output")

// Driver is the abstract GPIO interface task code uses. Platform-specific
// implementations handle the actual hardware.
type Driver interface {
	// ConfigureOutput configures a pin as a digital output. Configuring a
	// pin twice is not an error.
	ConfigureOutput(pin Pin) error

	// SetPin drives the pin high (true) or low (false).
	SetPin(pin Pin, high bool) error

	// GetPin returns the last level driven on the pin.
	GetPin(pin Pin) (bool, error)
}

// Output binds a driver to one configured pin.
type Output struct {
	drv Driver
	pin Pin
}

// NewOutput configures pin on drv and returns a handle to it.
func NewOutput(drv Driver, pin Pin) (*Output, error) {
	if err := drv.ConfigureOutput(pin); err != nil {
		return nil, fmt.Errorf("configure pin %d: %w", pin, err)
	}
	return &Output{drv: drv, pin: pin}, nil
}

func (o *Output) Pin() Pin { return o.pin }

func (o *Output) High() error { return o.drv.SetPin(o.pin, true) }
func (o *Output) Low() error  { return o.drv.SetPin(o.pin, false) }

// Toggle inverts the pin level.
func (o *Output) Toggle() error {
	v, err := o.drv.GetPin(o.pin)
	if err != nil {
		return err
	}
	return o.drv.SetPin(o.pin, !v)
}
