//go:build !darwin && !linux

package holoplay

import (
	"errors"
)

// DefaultLibrary is empty on platforms without a dynamic loader binding.
var DefaultLibrary = ""

// Library is unavailable on this platform.
type Library struct{}

// Open always fails on this platform; use a StaticSource instead.
func Open(path string) (*Library, error) {
	return nil, errors.New("holoplay library loading is not supported on this platform")
}

func (l *Library) InitializeApp(string, LicenseType) error { return ClientNoService }
func (l *Library) RefreshState() error                   { return ClientNoService }
func (l *Library) Close() error                          { return nil }
func (l *Library) CoreVersion() (string, error)          { return "", ClientNoService }
func (l *Library) ServiceVersion() (string, error)       { return "", ClientNoService }
func (l *Library) NumDevices() int                       { return 0 }

func (l *Library) String(int, Property) (string, error) { return "", ClientNoService }
func (l *Library) Int(int, Property) (int, error)       { return 0, ClientNoService }
func (l *Library) Float(int, Property) (float64, error) { return 0, ClientNoService }
