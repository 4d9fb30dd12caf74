package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"tickrtos/internal/sched"
)

var csvHeader = []string{"tick", "event", "task_id", "name", "priority", "wake", "error"}

// CSVSink writes one row per scheduler event.
type CSVSink struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVSink writes the header and returns a sink writing to w.
func NewCSVSink(w io.Writer) (*CSVSink, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	cw.Flush()
	return &CSVSink{w: cw}, cw.Error()
}

// CreateCSV opens the given file path for CSV logging of events.
func CreateCSV(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace %s: %w", path, err)
	}
	sink, err := NewCSVSink(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	sink.closer = f
	return sink, nil
}

func (c *CSVSink) Record(ev sched.StatusEvent) error {
	errText := ""
	if ev.Err != nil {
		errText = ev.Err.Error()
	}
	wake := ""
	if ev.Kind == sched.StatusSleep {
		wake = strconv.FormatUint(uint64(ev.Wake), 10)
	}
	rec := []string{
		strconv.FormatUint(uint64(ev.Tick), 10),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		ev.Name,
		strconv.Itoa(ev.Priority),
		wake,
		errText,
	}
	if err := c.w.Write(rec); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the underlying file, if the sink owns one.
func (c *CSVSink) Close() error {
	c.w.Flush()
	if c.closer != nil {
		return c.closer.Close()
	}
	return c.w.Error()
}
