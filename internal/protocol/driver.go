package protocol

import (
	"fmt"
	"strings"
)

// Driver identifies a scanning driver. The string value is the canonical
// spelling used across the process boundary. The zero value means "not
// specified" and is never encoded.
type Driver string

const (
	DriverDefault Driver = "Default"
	DriverApple   Driver = "Apple"
	DriverSane    Driver = "Sane"
	DriverEscl    Driver = "Escl"
	DriverWia     Driver = "Wia"
	DriverTwain   Driver = "Twain"
)

// AllDrivers lists every driver in declaration order.
var AllDrivers = []Driver{DriverDefault, DriverApple, DriverSane, DriverEscl, DriverWia, DriverTwain}

// Valid reports whether d is one of the known drivers.
func (d Driver) Valid() bool {
	for _, known := range AllDrivers {
		if d == known {
			return true
		}
	}
	return false
}

func (d Driver) String() string { return string(d) }

// ParseDriver maps a free-form string onto a Driver, case-insensitively.
// It never fails: an unrecognized value resolves to DriverDefault and ok is
// false so the caller can log the fallback.
func ParseDriver(s string) (d Driver, ok bool) {
	s = strings.TrimSpace(s)
	for _, known := range AllDrivers {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return DriverDefault, false
}

// PaperSource selects the input tray for a scan. The zero value means the
// backend's default source.
type PaperSource string

const (
	PaperSourceFlatbed PaperSource = "Flatbed"
	PaperSourceFeeder  PaperSource = "Feeder"
	PaperSourceDuplex  PaperSource = "Duplex"
)

var allPaperSources = []PaperSource{PaperSourceFlatbed, PaperSourceFeeder, PaperSourceDuplex}

// Valid reports whether p is one of the known paper sources.
func (p PaperSource) Valid() bool {
	for _, known := range allPaperSources {
		if p == known {
			return true
		}
	}
	return false
}

func (p PaperSource) String() string { return string(p) }

// ParsePaperSource is the PaperSource counterpart of ParseDriver. An
// unrecognized value resolves to the zero PaperSource (backend default).
func ParsePaperSource(s string) (p PaperSource, ok bool) {
	s = strings.TrimSpace(s)
	for _, known := range allPaperSources {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Notice describes a lenient parsing fallback.
type Notice struct {
	Field    string
	Value    string
	Fallback string
}

func (n Notice) String() string {
	fallback := n.Fallback
	if fallback == "" {
		fallback = "unset"
	}
	return fmt.Sprintf("unrecognized %s %q, using %s", n.Field, n.Value, fallback)
}
