// Package profile loads named scan settings from a YAML file.
package profile

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/zombor/scanbridge/internal/protocol"
)

// ErrUnknownProfile is returned by Get for a name not in the file.
var ErrUnknownProfile = errors.New("unknown profile")

// Profile holds the settings of one named scan profile.
type Profile struct {
	Device      string `yaml:"device"`
	Driver      string `yaml:"driver"`
	DPI         int    `yaml:"dpi"`
	PaperSource string `yaml:"paper_source"`
	ExportDir   string `yaml:"export_dir"`
	PDFPath     string `yaml:"pdf_path"`
	OCRLanguage string `yaml:"ocr_language"`
}

// Set is the contents of a profiles file.
type Set struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load reads profiles from path. A missing file yields an empty set.
func Load(path string) (*Set, error) {
	set := &Set{Profiles: map[string]Profile{}}
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("reading profiles: %w", err)
	}
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}
	if set.Profiles == nil {
		set.Profiles = map[string]Profile{}
	}

	for name, p := range set.Profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
	}
	return set, nil
}

// Get returns the named profile.
func (s *Set) Get(name string) (Profile, error) {
	p, ok := s.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// Names returns the profile names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.Profiles))
	for n := range s.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Request builds the scan command for the profile. Call Validate first;
// unknown enum values fall back the way the helper's parser does.
func (p Profile) Request() protocol.ScanToImages {
	d, _ := protocol.ParseDriver(p.Driver)
	if p.Driver == "" {
		d = ""
	}
	src, _ := protocol.ParsePaperSource(p.PaperSource)
	return protocol.ScanToImages{DeviceID: p.Device, Driver: d, DPI: p.DPI, PaperSource: src}
}

// Validate is stricter than the helper: a misspelled driver or paper
// source is an error rather than a fallback.
func (p Profile) Validate() error {
	if p.Driver != "" {
		if _, ok := protocol.ParseDriver(p.Driver); !ok {
			return fmt.Errorf("invalid driver %q", p.Driver)
		}
	}
	if p.PaperSource != "" {
		if _, ok := protocol.ParsePaperSource(p.PaperSource); !ok {
			return fmt.Errorf("invalid paper source %q", p.PaperSource)
		}
	}
	if p.DPI < 0 {
		return fmt.Errorf("invalid dpi %d", p.DPI)
	}
	return nil
}
