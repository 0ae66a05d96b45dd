//go:build darwin || linux

package holoplay

import (
	"fmt"
	"runtime"

	"github.com/ebitengine/purego"

	"holoquilt/internal/logging"
)

// DefaultLibrary is the shared library name searched by Open when no path
// is given.
var DefaultLibrary = map[string]string{
	"linux":  "libHoloPlayCore.so",
	"darwin": "libHoloPlayCore.dylib",
}[runtime.GOOS]

const stringBufferSize = 256

// Library is a Source backed by the HoloPlay Core shared library. Calls
// follow the library's C ABI and are bound at Open time without cgo.
type Library struct {
	handle uintptr

	initializeApp          func(appName string, license int32) int32
	refreshState           func() int32
	closeApp               func() int32
	getCoreVersion         func(buf *byte, size int32) int32
	getServiceVersion      func(buf *byte, size int32) int32
	getNumDevices          func() int32
	getDeviceHDMIName      func(index int32, buf *byte, size int32) int32
	getDeviceType          func(index int32, buf *byte, size int32) int32
	getWinX                func(index int32) int32
	getWinY                func(index int32) int32
	getScreenW             func(index int32) int32
	getScreenH             func(index int32) int32
	getDisplayAspect       func(index int32) float32
	getPitch               func(index int32) float32
	getTilt                func(index int32) float32
	getCenter              func(index int32) float32
	getSubp                func(index int32) float32
	getFringe              func(index int32) float32
	getRi                  func(index int32) int32
	getBi                  func(index int32) int32
	getInvView             func(index int32) int32
	getDevicePropertyFloat func(index int32, key string) float32
}

// Open loads the library at path, or DefaultLibrary when path is empty,
// and binds every entry point.
func Open(path string) (*Library, error) {
	if path == "" {
		path = DefaultLibrary
	}
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	l := &Library{handle: handle}
	symbols := []struct {
		name string
		fptr any
	}{
		{"hpc_InitializeApp", &l.initializeApp},
		{"hpc_RefreshState", &l.refreshState},
		{"hpc_CloseApp", &l.closeApp},
		{"hpc_GetHoloPlayCoreVersion", &l.getCoreVersion},
		{"hpc_GetHoloPlayServiceVersion", &l.getServiceVersion},
		{"hpc_GetNumDevices", &l.getNumDevices},
		{"hpc_GetDeviceHDMIName", &l.getDeviceHDMIName},
		{"hpc_GetDeviceType", &l.getDeviceType},
		{"hpc_GetDevicePropertyWinX", &l.getWinX},
		{"hpc_GetDevicePropertyWinY", &l.getWinY},
		{"hpc_GetDevicePropertyScreenW", &l.getScreenW},
		{"hpc_GetDevicePropertyScreenH", &l.getScreenH},
		{"hpc_GetDevicePropertyDisplayAspect", &l.getDisplayAspect},
		{"hpc_GetDevicePropertyPitch", &l.getPitch},
		{"hpc_GetDevicePropertyTilt", &l.getTilt},
		{"hpc_GetDevicePropertyCenter", &l.getCenter},
		{"hpc_GetDevicePropertySubp", &l.getSubp},
		{"hpc_GetDevicePropertyFringe", &l.getFringe},
		{"hpc_GetDevicePropertyRi", &l.getRi},
		{"hpc_GetDevicePropertyBi", &l.getBi},
		{"hpc_GetDevicePropertyInvView", &l.getInvView},
		{"hpc_GetDevicePropertyFloat", &l.getDevicePropertyFloat},
	}
	for _, s := range symbols {
		sym, err := purego.Dlsym(handle, s.name)
		if err != nil {
			purego.Dlclose(handle)
			return nil, fmt.Errorf("missing symbol %s in %s: %w", s.name, path, err)
		}
		purego.RegisterFunc(s.fptr, sym)
	}

	logging.Logger().Debug("holoplay library loaded", "path", path)
	return l, nil
}

// InitializeApp registers this application with the service.
func (l *Library) InitializeApp(appName string, license LicenseType) error {
	return ClientError(l.initializeApp(appName, int32(license))).Err()
}

func (l *Library) RefreshState() error {
	return ClientError(l.refreshState()).Err()
}

// Close ends the service session and unloads the library.
func (l *Library) Close() error {
	err := ClientError(l.closeApp()).Err()
	if cerr := purego.Dlclose(l.handle); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// CoreVersion returns the version of the loaded library.
func (l *Library) CoreVersion() (string, error) {
	return readString(func(buf *byte, n int32) int32 { return l.getCoreVersion(buf, n) })
}

// ServiceVersion returns the version of the running service.
func (l *Library) ServiceVersion() (string, error) {
	return readString(func(buf *byte, n int32) int32 { return l.getServiceVersion(buf, n) })
}

func (l *Library) NumDevices() int {
	return int(l.getNumDevices())
}

func (l *Library) String(index int, key Property) (string, error) {
	i := int32(index)
	switch key {
	case PropHDMIName:
		return readString(func(buf *byte, n int32) int32 { return l.getDeviceHDMIName(i, buf, n) })
	case PropType:
		return readString(func(buf *byte, n int32) int32 { return l.getDeviceType(i, buf, n) })
	}
	return "", fmt.Errorf("unknown string property %q", key)
}

func (l *Library) Int(index int, key Property) (int, error) {
	i := int32(index)
	var get func(int32) int32
	switch key {
	case PropWinX:
		get = l.getWinX
	case PropWinY:
		get = l.getWinY
	case PropScreenW:
		get = l.getScreenW
	case PropScreenH:
		get = l.getScreenH
	case PropRi:
		get = l.getRi
	case PropBi:
		get = l.getBi
	case PropInvView:
		get = l.getInvView
	default:
		return 0, fmt.Errorf("unknown int property %q", key)
	}
	return int(get(i)), nil
}

func (l *Library) Float(index int, key Property) (float64, error) {
	i := int32(index)
	var get func(int32) float32
	switch key {
	case PropDisplayAspect:
		get = l.getDisplayAspect
	case PropPitch:
		get = l.getPitch
	case PropTilt:
		get = l.getTilt
	case PropCenter:
		get = l.getCenter
	case PropSubp:
		get = l.getSubp
	case PropFringe:
		get = l.getFringe
	default:
		return float64(l.getDevicePropertyFloat(i, string(key))), nil
	}
	return float64(get(i)), nil
}

// readString calls a getter that fills a C string buffer.
func readString(get func(buf *byte, size int32) int32) (string, error) {
	buf := make([]byte, stringBufferSize)
	if err := ClientError(get(&buf[0], int32(len(buf)))).Err(); err != nil {
		return "", err
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}
