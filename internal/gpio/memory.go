package gpio

import "sync"

// Transition is one recorded level change.
type Transition struct {
	Pin  Pin
	High bool
	At   uint32 // tick at which the level was driven
}

// MemoryDriver keeps pin levels in memory and records every write. It is
// the host-side stand-in for real hardware.
type MemoryDriver struct {
	mu      sync.Mutex
	now     func() uint32
	levels  map[Pin]bool
	history []Transition
}

// NewMemoryDriver returns a driver stamping transitions with now(); now may
// be nil.
func NewMemoryDriver(now func() uint32) *MemoryDriver {
	return &MemoryDriver{
		now:    now,
		levels: make(map[Pin]bool),
	}
}

func (d *MemoryDriver) ConfigureOutput(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.levels[pin]; !ok {
		d.levels[pin] = false
	}
	return nil
}

func (d *MemoryDriver) SetPin(pin Pin, high bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.levels[pin]; !ok {
		return ErrNotConfigured
	}
	d.levels[pin] = high
	var at uint32
	if d.now != nil {
		at = d.now()
	}
	d.history = append(d.history, Transition{Pin: pin, High: high, At: at})
	return nil
}

func (d *MemoryDriver) GetPin(pin Pin) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.levels[pin]
	if !ok {
		return false, ErrNotConfigured
	}
	return v, nil
}

// History returns a copy of all recorded transitions.
func (d *MemoryDriver) History() []Transition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Transition(nil), d.history...)
}
