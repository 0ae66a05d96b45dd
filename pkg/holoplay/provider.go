package holoplay

import (
	"errors"
	"fmt"
	"sync"

	"holoquilt/internal/logging"
	"holoquilt/internal/models"
)

// Provider hands out device calibrations. Values are read from the source
// once and cached until Refresh.
type Provider struct {
	source Source

	mu    sync.Mutex
	cache map[int]models.Calibration
}

// NewProvider creates a provider over src.
func NewProvider(src Source) *Provider {
	return &Provider{
		source: src,
		cache:  make(map[int]models.Calibration),
	}
}

// Get returns the calibration of the device at index. It fails with
// ErrDeviceUnavailable when the index is out of range or the service
// connection is down, and with ErrNotFound when the service has no
// calibration for a listed device.
func (p *Provider) Get(index int) (models.Calibration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.cache[index]; ok {
		return c, nil
	}

	n := p.source.NumDevices()
	if index < 0 || index >= n {
		return models.Calibration{}, fmt.Errorf("device %d of %d: %w", index, n, ErrDeviceUnavailable)
	}

	c, err := readCalibration(p.source, index)
	if err != nil {
		return models.Calibration{}, fmt.Errorf("device %d: %w", index, err)
	}
	p.cache[index] = c

	logging.Logger().Info("calibration loaded",
		"device", index, "name", c.HDMIName, "pitch", c.Pitch, "tilt", c.Tilt,
		"center", c.Center, "viewCone", c.ViewCone)
	return c, nil
}

// Devices returns the calibrations of all connected devices.
func (p *Provider) Devices() ([]models.Calibration, error) {
	n := p.source.NumDevices()
	out := make([]models.Calibration, 0, n)
	for i := 0; i < n; i++ {
		c, err := p.Get(i)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Refresh re-reads the device list and drops every cached calibration.
// Devices that disconnected are no longer served afterwards.
func (p *Provider) Refresh() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clear(p.cache)
	if err := p.source.RefreshState(); err != nil {
		return fmt.Errorf("refresh device state: %w", err)
	}
	return nil
}

// readCalibration collects every calibration property of one device.
func readCalibration(src Source, index int) (models.Calibration, error) {
	c := models.Calibration{Index: index}
	var errs []error

	str := func(key Property) string {
		v, err := src.String(index, key)
		errs = append(errs, err)
		return v
	}
	num := func(key Property) int {
		v, err := src.Int(index, key)
		errs = append(errs, err)
		return v
	}
	flt := func(key Property) float64 {
		v, err := src.Float(index, key)
		errs = append(errs, err)
		return v
	}

	c.HDMIName = str(PropHDMIName)
	c.Type = str(PropType)
	c.WinX = num(PropWinX)
	c.WinY = num(PropWinY)
	c.ScreenW = num(PropScreenW)
	c.ScreenH = num(PropScreenH)
	c.DisplayAspect = flt(PropDisplayAspect)
	c.Pitch = flt(PropPitch)
	c.Tilt = flt(PropTilt)
	c.Center = flt(PropCenter)
	c.Subp = flt(PropSubp)
	c.Fringe = flt(PropFringe)
	c.ViewCone = flt(PropViewCone)
	c.Ri = num(PropRi)
	c.Bi = num(PropBi)
	c.InvView = num(PropInvView) != 0

	if err := errors.Join(errs...); err != nil {
		return models.Calibration{}, err
	}
	if c.Pitch == 0 || c.DisplayAspect == 0 {
		return models.Calibration{}, ServiceLKGNotFound
	}
	if c.Ri < 0 || c.Ri > 2 || c.Bi < 0 || c.Bi > 2 {
		return models.Calibration{}, fmt.Errorf("channel indices ri=%d bi=%d out of range", c.Ri, c.Bi)
	}
	return c, nil
}
