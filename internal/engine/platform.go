package engine

import (
	"runtime"

	"github.com/zombor/scanbridge/internal/protocol"
)

// Platform decides which drivers exist on the helper's operating system.
type Platform struct {
	GOOS string
}

// CurrentPlatform returns the platform the helper runs on.
func CurrentPlatform() Platform {
	return Platform{GOOS: runtime.GOOS}
}

// Supports reports whether d can exist on p at all.
func (p Platform) Supports(d protocol.Driver) bool {
	switch d {
	case protocol.DriverDefault, protocol.DriverEscl:
		return true
	case protocol.DriverApple:
		return p.GOOS == "darwin"
	case protocol.DriverWia, protocol.DriverTwain:
		return p.GOOS == "windows"
	case protocol.DriverSane:
		switch p.GOOS {
		case "linux", "darwin", "freebsd", "openbsd", "netbsd":
			return true
		}
	}
	return false
}

// DefaultDriver is the driver Default resolves to.
func (p Platform) DefaultDriver() protocol.Driver {
	switch p.GOOS {
	case "windows":
		return protocol.DriverWia
	case "darwin":
		return protocol.DriverApple
	default:
		return protocol.DriverSane
	}
}

// Drivers lists the concrete drivers available on p.
func (p Platform) Drivers() []protocol.Driver {
	var drivers []protocol.Driver
	for _, d := range protocol.AllDrivers {
		if d != protocol.DriverDefault && p.Supports(d) {
			drivers = append(drivers, d)
		}
	}
	return drivers
}
