package scene

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"holoquilt/internal/models"
)

var errCancelled = errors.New("render cancelled")

// lightDir is the normalized direction towards the key light.
var lightDir = normalize(models.Vec3{X: 0.5, Y: 0.8, Z: 0.6})

// lens is a camera prepared for casting rays.
type lens struct {
	origin     models.Vec3
	right      models.Vec3
	up         models.Vec3
	back       models.Vec3
	halfWidth  float64
	halfHeight float64
	shift      float64
}

// newLens derives the camera axes from the pose with the object scale
// removed, and the sensor extent from the field of view and sensor fit.
func newLens(cam models.Camera, width, height int, pixelAspectX, pixelAspectY float64) (*lens, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", width, height)
	}
	if cam.FieldOfView <= 0 || cam.FieldOfView >= math.Pi {
		return nil, fmt.Errorf("invalid field of view %g", cam.FieldOfView)
	}
	if pixelAspectX <= 0 || pixelAspectY <= 0 {
		pixelAspectX, pixelAspectY = 1, 1
	}

	w := cam.Pose.World
	l := &lens{
		origin: cam.Pose.Location(),
		right:  normalize(models.Vec3{X: w[0], Y: w[4], Z: w[8]}),
		up:     normalize(models.Vec3{X: w[1], Y: w[5], Z: w[9]}),
		back:   normalize(models.Vec3{X: w[2], Y: w[6], Z: w[10]}),
	}

	aspect := float64(width) * pixelAspectX / (float64(height) * pixelAspectY)
	half := math.Tan(cam.FieldOfView / 2)
	horizontal := cam.SensorFit == models.SensorFitHorizontal ||
		(cam.SensorFit == models.SensorFitAuto && aspect >= 1)
	if horizontal {
		l.halfWidth, l.halfHeight = half, half/aspect
	} else {
		l.halfWidth, l.halfHeight = half*aspect, half
	}
	// the shift is relative to the half-width of a vertically fitted sensor
	l.shift = cam.ShiftX * half * aspect
	return l, nil
}

// ray returns the normalized direction through normalized image position
// (x, y), both in [0, 1] with y growing upward.
func (l *lens) ray(x, y float64) models.Vec3 {
	sx := (2*x-1)*l.halfWidth + l.shift
	sy := (2*y - 1) * l.halfHeight
	return normalize(l.right.Scale(sx).Add(l.up.Scale(sy)).Sub(l.back))
}

// project returns the normalized image position of a world point, and
// false if it is behind the camera.
func (l *lens) project(p models.Vec3) (x, y float64, ok bool) {
	d := p.Sub(l.origin)
	depth := -dot(d, l.back)
	if depth <= 0 {
		return 0, 0, false
	}
	sx := dot(d, l.right) / depth
	sy := dot(d, l.up) / depth
	x = ((sx-l.shift)/l.halfWidth + 1) / 2
	y = (sy/l.halfHeight + 1) / 2
	return x, y, true
}

// Project returns the pixel position, bottom-up, that a world point lands
// on in a render with the given camera and settings.
func Project(p models.Vec3, cam models.Camera, settings models.RenderSettings) (x, y float64, ok bool) {
	l, err := newLens(cam, settings.ResolutionX, settings.ResolutionY, settings.PixelAspectX, settings.PixelAspectY)
	if err != nil {
		return 0, 0, false
	}
	nx, ny, ok := l.project(p)
	return nx * float64(settings.ResolutionX), ny * float64(settings.ResolutionY), ok
}

// render traces one image. cancel is polled once per row.
func render(spheres []Sphere, cam models.Camera, settings models.RenderSettings, cancel *atomic.Bool) (*models.PixelBuffer, error) {
	w, h := settings.ResolutionX, settings.ResolutionY
	l, err := newLens(cam, w, h, settings.PixelAspectX, settings.PixelAspectY)
	if err != nil {
		return nil, err
	}

	buf := models.NewPixelBuffer(w, h)
	for y := 0; y < h; y++ {
		if cancel.Load() {
			return nil, errCancelled
		}
		for x := 0; x < w; x++ {
			dir := l.ray((float64(x)+0.5)/float64(w), (float64(y)+0.5)/float64(h))
			buf.Set(x, y, toRGBA(shade(spheres, l.origin, dir)))
		}
	}
	return buf, nil
}

// shade returns the color seen along a ray.
func shade(spheres []Sphere, origin, dir models.Vec3) [3]float64 {
	nearest := math.Inf(1)
	hit := -1
	for i, s := range spheres {
		if t, ok := intersect(s, origin, dir); ok && t < nearest {
			nearest, hit = t, i
		}
	}

	if hit < 0 {
		// sky gradient
		t := 0.5 * (dir.Y + 1)
		return [3]float64{0.05 + 0.1*t, 0.05 + 0.15*t, 0.1 + 0.3*t}
	}

	s := spheres[hit]
	p := origin.Add(dir.Scale(nearest))
	n := normalize(p.Sub(s.Center))
	diffuse := math.Max(0, dot(n, lightDir))
	k := 0.15 + 0.85*diffuse
	return [3]float64{s.Color[0] * k, s.Color[1] * k, s.Color[2] * k}
}

// intersect returns the nearest positive ray parameter hitting s.
func intersect(s Sphere, origin, dir models.Vec3) (float64, bool) {
	oc := origin.Sub(s.Center)
	b := dot(oc, dir)
	c := dot(oc, oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t > 1e-6 {
		return t, true
	}
	if t := -b + sq; t > 1e-6 {
		return t, true
	}
	return 0, false
}

func toRGBA(c [3]float64) [4]uint8 {
	var out [4]uint8
	for i, v := range c {
		out[i] = uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
	}
	out[3] = 255
	return out
}

func dot(a, b models.Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func normalize(v models.Vec3) models.Vec3 {
	l := math.Sqrt(dot(v, v))
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}
