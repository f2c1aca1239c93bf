package models

import (
	"fmt"
	"strings"
	"time"
)

// WindowLayout is how window bounds travel to the API and into the email.
const WindowLayout = "2006-01-02 15:04:05.000000"

var windowInputLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastWindow returns the window of the given length that ends at end.
func LastWindow(end time.Time, length time.Duration) Window {
	return Window{Start: end.Add(-length), End: end}
}

// ParseWindow parses both bounds and checks that start is not after end.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseWindowTime(start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window start: %w", err)
	}
	e, err := ParseWindowTime(end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window end: %w", err)
	}
	if s.After(e) {
		return Window{}, fmt.Errorf("window start %s is after end %s", start, end)
	}
	return Window{Start: s, End: e}, nil
}

func ParseWindowTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range windowInputLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", value)
}

func (w Window) FormattedStart() string {
	return w.Start.Format(WindowLayout)
}

func (w Window) FormattedEnd() string {
	return w.End.Format(WindowLayout)
}

func (w Window) String() string {
	return fmt.Sprintf("%s .. %s", w.FormattedStart(), w.FormattedEnd())
}
