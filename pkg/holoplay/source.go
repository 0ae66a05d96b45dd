// Package holoplay reads lightfield display calibration from the HoloPlay
// Core service, or from a static table when no service is available.
package holoplay

import (
	"fmt"

	"holoquilt/internal/models"
)

// Property names a per-device value.
type Property string

const (
	PropHDMIName      Property = "hdmiName"
	PropType          Property = "type"
	PropWinX          Property = "winX"
	PropWinY          Property = "winY"
	PropScreenW       Property = "screenW"
	PropScreenH       Property = "screenH"
	PropDisplayAspect Property = "displayAspect"
	PropPitch         Property = "pitch"
	PropTilt          Property = "tilt"
	PropCenter        Property = "center"
	PropSubp          Property = "subp"
	PropFringe        Property = "fringe"
	PropRi            Property = "ri"
	PropBi            Property = "bi"
	PropInvView       Property = "invView"

	// PropViewCone is read through the generic float getter
	PropViewCone Property = "/calibration/viewCone/value"
)

// Source is a read-only key-value view of the connected devices.
type Source interface {
	// RefreshState re-reads the device list from the service.
	RefreshState() error

	// NumDevices returns the number of connected devices.
	NumDevices() int

	String(index int, key Property) (string, error)
	Int(index int, key Property) (int, error)
	Float(index int, key Property) (float64, error)
}

// StaticSource serves calibrations from memory. It stands in for the
// service when running offline.
type StaticSource struct {
	devices map[int]models.Calibration
}

// NewStaticSource creates a source serving the given calibrations. Their
// Index fields are ignored; devices are numbered in slice order.
func NewStaticSource(cals ...models.Calibration) *StaticSource {
	s := &StaticSource{devices: make(map[int]models.Calibration, len(cals))}
	for i, c := range cals {
		c.Index = i
		s.devices[i] = c
	}
	return s
}

func (s *StaticSource) RefreshState() error { return nil }

func (s *StaticSource) NumDevices() int { return len(s.devices) }

func (s *StaticSource) lookup(index int) (models.Calibration, error) {
	c, ok := s.devices[index]
	if !ok {
		return models.Calibration{}, fmt.Errorf("device %d: %w", index, ErrDeviceUnavailable)
	}
	return c, nil
}

func (s *StaticSource) String(index int, key Property) (string, error) {
	c, err := s.lookup(index)
	if err != nil {
		return "", err
	}
	switch key {
	case PropHDMIName:
		return c.HDMIName, nil
	case PropType:
		return c.Type, nil
	}
	return "", fmt.Errorf("unknown string property %q", key)
}

func (s *StaticSource) Int(index int, key Property) (int, error) {
	c, err := s.lookup(index)
	if err != nil {
		return 0, err
	}
	switch key {
	case PropWinX:
		return c.WinX, nil
	case PropWinY:
		return c.WinY, nil
	case PropScreenW:
		return c.ScreenW, nil
	case PropScreenH:
		return c.ScreenH, nil
	case PropRi:
		return c.Ri, nil
	case PropBi:
		return c.Bi, nil
	case PropInvView:
		if c.InvView {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unknown int property %q", key)
}

func (s *StaticSource) Float(index int, key Property) (float64, error) {
	c, err := s.lookup(index)
	if err != nil {
		return 0, err
	}
	switch key {
	case PropDisplayAspect:
		return c.DisplayAspect, nil
	case PropPitch:
		return c.Pitch, nil
	case PropTilt:
		return c.Tilt, nil
	case PropCenter:
		return c.Center, nil
	case PropSubp:
		return c.Subp, nil
	case PropFringe:
		return c.Fringe, nil
	case PropViewCone:
		return c.ViewCone, nil
	}
	return 0, fmt.Errorf("unknown float property %q", key)
}
