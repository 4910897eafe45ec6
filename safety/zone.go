// Package safety checks end effector positions against a configured axis-aligned safety zone.
package safety

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrOutsideZone is matched by every ViolationError.
var ErrOutsideZone = errors.New("position is outside the safety zone")

// Zone is an axis-aligned box, inclusive on every face, in meters.
type Zone struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
	ZMin float64 `json:"z_min"`
	ZMax float64 `json:"z_max"`
}

// NewZone builds a Zone from [xmin, xmax, ymin, ymax, zmin, zmax] and validates it.
func NewZone(bounds [6]float64) (Zone, error) {
	z := Zone{
		XMin: bounds[0], XMax: bounds[1],
		YMin: bounds[2], YMax: bounds[3],
		ZMin: bounds[4], ZMax: bounds[5],
	}
	if err := z.Validate(""); err != nil {
		return Zone{}, err
	}
	return z, nil
}

// Bounds returns the zone as [xmin, xmax, ymin, ymax, zmin, zmax].
func (z Zone) Bounds() [6]float64 {
	return [6]float64{z.XMin, z.XMax, z.YMin, z.YMax, z.ZMin, z.ZMax}
}

// Validate ensures all bounds are finite and ordered.
func (z Zone) Validate(path string) error {
	for _, ax := range z.axes() {
		if math.IsNaN(ax.min) || math.IsInf(ax.min, 0) || math.IsNaN(ax.max) || math.IsInf(ax.max, 0) {
			return errors.Errorf("%s: %s bounds must be finite, got [%v, %v]", fieldPath(path, ax.name), ax.name, ax.min, ax.max)
		}
		if ax.min > ax.max {
			return errors.Errorf("%s: %s_min (%v) is greater than %s_max (%v)", fieldPath(path, ax.name), ax.name, ax.min, ax.name, ax.max)
		}
	}
	return nil
}

// IsWithinZone reports whether every coordinate of position lies in its [min, max] interval.
// NaN coordinates are never within the zone.
func IsWithinZone(position r3.Vector, zone Zone) bool {
	return zone.Contains(position)
}

// Contains is IsWithinZone as a method.
func (z Zone) Contains(position r3.Vector) bool {
	return z.XMin <= position.X && position.X <= z.XMax &&
		z.YMin <= position.Y && position.Y <= z.YMax &&
		z.ZMin <= position.Z && position.Z <= z.ZMax
}

// Check returns nil if position is within the zone and a *ViolationError otherwise.
func (z Zone) Check(position r3.Vector) error {
	if z.Contains(position) {
		return nil
	}
	coords := [3]float64{position.X, position.Y, position.Z}
	violation := &ViolationError{Position: position, Zone: z}
	for i, ax := range z.axes() {
		if !(ax.min <= coords[i] && coords[i] <= ax.max) {
			violation.Axes = append(violation.Axes, ax.name)
		}
	}
	return violation
}

func (z Zone) String() string {
	return fmt.Sprintf("x[%g, %g] y[%g, %g] z[%g, %g]", z.XMin, z.XMax, z.YMin, z.YMax, z.ZMin, z.ZMax)
}

type axis struct {
	name     string
	min, max float64
}

func (z Zone) axes() [3]axis {
	return [3]axis{
		{"x", z.XMin, z.XMax},
		{"y", z.YMin, z.YMax},
		{"z", z.ZMin, z.ZMax},
	}
}

// ViolationError describes a position found outside a Zone.
type ViolationError struct {
	Position r3.Vector
	Zone     Zone
	// Axes lists the axes whose coordinate fell outside its bounds.
	Axes []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s: (%g, %g, %g) exceeds %s on %s",
		ErrOutsideZone, e.Position.X, e.Position.Y, e.Position.Z, e.Zone, strings.Join(e.Axes, ","))
}

// Is lets errors.Is match ErrOutsideZone.
func (e *ViolationError) Is(target error) bool {
	return target == ErrOutsideZone
}

func fieldPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
