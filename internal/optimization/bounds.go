package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Bounds is a per-dimension box [Low[d], High[d]] for particle positions.
type Bounds struct {
	Low  []float64 `json:"low" yaml:"low"`
	High []float64 `json:"high" yaml:"high"`
}

// NewBounds builds bounds from per-dimension vectors and validates them.
func NewBounds(low, high []float64, dims int) (*Bounds, error) {
	b := &Bounds{
		Low:  append([]float64(nil), low...),
		High: append([]float64(nil), high...),
	}
	if err := b.Validate(dims); err != nil {
		return nil, err
	}
	return b, nil
}

// ScalarBounds applies the same [low, high] interval to every dimension.
func ScalarBounds(low, high float64, dims int) (*Bounds, error) {
	return NewBounds(fill(low, dims), fill(high, dims), dims)
}

// Validate checks that the bounds describe a non-empty box of the given dimensionality.
func (b *Bounds) Validate(dims int) error {
	if err := validatePair(b.Low, b.High, dims); err != nil {
		return err.WithComponent("bounds")
	}
	return nil
}

// Dims returns the number of dimensions covered by the bounds.
func (b *Bounds) Dims() int {
	return len(b.Low)
}

// Width returns High[d] - Low[d].
func (b *Bounds) Width(d int) float64 {
	return b.High[d] - b.Low[d]
}

// Contains reports whether every row of x lies inside the bounds.
func (b *Bounds) Contains(x mat.Matrix) bool {
	r, c := x.Dims()
	if c != len(b.Low) {
		return false
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := x.At(i, j)
			if !(v >= b.Low[j] && v <= b.High[j]) {
				return false
			}
		}
	}
	return true
}

// Clamp is a per-dimension velocity interval [Min[d], Max[d]].
type Clamp struct {
	Min []float64 `json:"min" yaml:"min"`
	Max []float64 `json:"max" yaml:"max"`
}

// NewClamp builds a velocity clamp from per-dimension vectors and validates it.
func NewClamp(min, max []float64, dims int) (*Clamp, error) {
	c := &Clamp{
		Min: append([]float64(nil), min...),
		Max: append([]float64(nil), max...),
	}
	if err := c.Validate(dims); err != nil {
		return nil, err
	}
	return c, nil
}

// ScalarClamp applies the same velocity interval to every dimension.
func ScalarClamp(min, max float64, dims int) (*Clamp, error) {
	return NewClamp(fill(min, dims), fill(max, dims), dims)
}

// Validate checks that the clamp has one non-empty interval per dimension.
func (c *Clamp) Validate(dims int) error {
	if err := validatePair(c.Min, c.Max, dims); err != nil {
		return err.WithComponent("velocity_clamp")
	}
	return nil
}

// Apply clips every element of v in place.
func (c *Clamp) Apply(v *mat.Dense) {
	r, _ := v.Dims()
	for i := 0; i < r; i++ {
		row := v.RawRowView(i)
		for j := range row {
			row[j] = math.Max(c.Min[j], math.Min(row[j], c.Max[j]))
		}
	}
}

func validatePair(low, high []float64, dims int) *Error {
	if dims <= 0 {
		return NewConfigError("dimensions must be positive, got %d", dims)
	}
	if len(low) != dims || len(high) != dims {
		return NewConfigError("expected %d lower and upper values, got %d and %d", dims, len(low), len(high))
	}
	for d := range low {
		if math.IsNaN(low[d]) || math.IsNaN(high[d]) {
			return NewConfigError("dimension %d has a NaN limit", d)
		}
		if !(low[d] < high[d]) {
			return NewConfigError("dimension %d: lower limit %v must be strictly less than upper limit %v", d, low[d], high[d])
		}
	}
	return nil
}

func fill(v float64, n int) []float64 {
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
