package config

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// NorthOffset is the clockwise angle in degrees between scene +Y and true north.
// YAML accepts a plain number of degrees or a 2-vector [x, y] pointing north.
type NorthOffset float64

// Degrees returns the offset normalised to [0, 360).
func (n NorthOffset) Degrees() float64 {
	a := math.Mod(float64(n), 360)
	if a < 0 {
		a += 360
	}
	return a
}

// NorthFromVector converts a north-pointing scene vector into an offset.
func NorthFromVector(x, y float64) (NorthOffset, error) {
	if x == 0 && y == 0 {
		return 0, fmt.Errorf("north vector must not be zero")
	}
	return NorthOffset(math.Atan2(x, y) * 180 / math.Pi).normalised(), nil
}

func (n NorthOffset) normalised() NorthOffset {
	return NorthOffset(n.Degrees())
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *NorthOffset) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var v []float64
		if err := value.Decode(&v); err != nil {
			return err
		}
		if len(v) != 2 {
			return fmt.Errorf("north vector needs 2 components, got %d", len(v))
		}
		off, err := NorthFromVector(v[0], v[1])
		if err != nil {
			return err
		}
		*n = off
		return nil
	}

	var deg float64
	if err := value.Decode(&deg); err != nil {
		return fmt.Errorf("north offset must be degrees or [x, y]: %w", err)
	}
	*n = NorthOffset(deg).normalised()
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (n NorthOffset) MarshalYAML() (interface{}, error) {
	return n.Degrees(), nil
}
