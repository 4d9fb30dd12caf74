//go:build tinygo

package gpio

import (
	"machine"
	"sync"
)

// MachineDriver drives real pins through TinyGo's machine package.
type MachineDriver struct {
	mu         sync.Mutex
	configured map[Pin]machine.Pin
}

// NewMachineDriver returns a driver with no pins configured.
func NewMachineDriver() *MachineDriver {
	return &MachineDriver{configured: make(map[Pin]machine.Pin)}
}

func (d *MachineDriver) ConfigureOutput(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.configured[pin]; ok {
		return nil
	}
	mp := machine.Pin(pin)
	mp.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configured[pin] = mp
	return nil
}

func (d *MachineDriver) SetPin(pin Pin, high bool) error {
	d.mu.Lock()
	mp, ok := d.configured[pin]
	d.mu.Unlock()
	if !ok {
		return ErrNotConfigured
	}
	mp.Set(high)
	return nil
}

func (d *MachineDriver) GetPin(pin Pin) (bool, error) {
	d.mu.Lock()
	mp, ok := d.configured[pin]
	d.mu.Unlock()
	if !ok {
		return false, ErrNotConfigured
	}
	return mp.Get(), nil
}
