package gpio

import "log/slog"

// LogDriver wraps another driver and logs every level change.
type LogDriver struct {
	next   Driver
	logger *slog.Logger
}

func NewLogDriver(next Driver, logger *slog.Logger) *LogDriver {
	return &LogDriver{next: next, logger: logger.With("component", "gpio")}
}

func (d *LogDriver) ConfigureOutput(pin Pin) error {
	if err := d.next.ConfigureOutput(pin); err != nil {
		return err
	}
	d.logger.Debug("pin configured", "pin", pin, "mode", "output")
	return nil
}

func (d *LogDriver) SetPin(pin Pin, high bool) error {
	if err := d.next.SetPin(pin, high); err != nil {
		d.logger.Warn("pin write failed", "pin", pin, "error", err)
		return err
	}
	level := "low"
	if high {
		level = "high"
	}
	d.logger.Info("pin", "pin", pin, "level", level)
	return nil
}

func (d *LogDriver) GetPin(pin Pin) (bool, error) { return d.next.GetPin(pin) }
