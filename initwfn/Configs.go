package initwfn

import (
	"fmt"
	"strings"

	G "gorgonia.org/gorgonia"
)

// GlorotUConfig configures Glorot uniform initialization
type GlorotUConfig struct{ Gain float64 }

// GlorotNConfig configures Glorot normal initialization
type GlorotNConfig struct{ Gain float64 }

// HeUConfig configures He uniform initialization
type HeUConfig struct{ Gain float64 }

// HeNConfig configures He normal initialization
type HeNConfig struct{ Gain float64 }

// ZeroesConfig configures initialization to zero
type ZeroesConfig struct{}

// OnesConfig configures initialization to one
type OnesConfig struct{}

// ConstantConfig configures initialization to a constant Value
type ConstantConfig struct{ Value float64 }

// UniformConfig configures initialization from U[Low, High)
type UniformConfig struct{ Low, High float64 }

// GaussianConfig configures initialization from N(Mean, StdDev²)
type GaussianConfig struct{ Mean, StdDev float64 }

func (c GlorotUConfig) Type() Type        { return GlorotU }
func (c GlorotUConfig) Create() G.InitWFn { return G.GlorotU(c.Gain) }

func (c GlorotNConfig) Type() Type        { return GlorotN }
func (c GlorotNConfig) Create() G.InitWFn { return G.GlorotN(c.Gain) }

func (c HeUConfig) Type() Type        { return HeU }
func (c HeUConfig) Create() G.InitWFn { return G.HeU(c.Gain) }

func (c HeNConfig) Type() Type        { return HeN }
func (c HeNConfig) Create() G.InitWFn { return G.HeN(c.Gain) }

func (ZeroesConfig) Type() Type        { return Zeroes }
func (ZeroesConfig) Create() G.InitWFn { return G.Zeroes() }

func (OnesConfig) Type() Type        { return Ones }
func (OnesConfig) Create() G.InitWFn { return G.Ones() }

func (c ConstantConfig) Type() Type        { return Constant }
func (c ConstantConfig) Create() G.InitWFn { return G.ValuesOf(c.Value) }

func (c UniformConfig) Type() Type        { return Uniform }
func (c UniformConfig) Create() G.InitWFn { return G.Uniform(c.Low, c.High) }

func (c GaussianConfig) Type() Type { return Gaussian }
func (c GaussianConfig) Create() G.InitWFn {
	return G.Gaussian(c.Mean, c.StdDev)
}

// NewGlorotU returns a new Glorot uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{gain})
}

// NewGlorotN returns a new Glorot normal weight initializer
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{gain})
}

// NewHeU returns a new He uniform weight initializer
func NewHeU(gain float64) (*InitWFn, error) {
	return newInitWFn(HeUConfig{gain})
}

// NewHeN returns a new He normal weight initializer
func NewHeN(gain float64) (*InitWFn, error) {
	return newInitWFn(HeNConfig{gain})
}

// NewZeroes returns a new weight initializer setting all weights to 0
func NewZeroes() (*InitWFn, error) {
	return newInitWFn(ZeroesConfig{})
}

// NewOnes returns a new weight initializer setting all weights to 1
func NewOnes() (*InitWFn, error) {
	return newInitWFn(OnesConfig{})
}

// NewConstant returns a new weight initializer setting all weights to
// value
func NewConstant(value float64) (*InitWFn, error) {
	return newInitWFn(ConstantConfig{value})
}

// NewUniform returns a new weight initializer drawing from U[low, high)
func NewUniform(low, high float64) (*InitWFn, error) {
	if !(low < high) {
		return nil, fmt.Errorf("newUniform: low (%v) must be smaller than "+
			"high (%v)", low, high)
	}
	return newInitWFn(UniformConfig{low, high})
}

// NewGaussian returns a new weight initializer drawing from
// N(mean, stddev²)
func NewGaussian(mean, stddev float64) (*InitWFn, error) {
	if !(stddev > 0) {
		return nil, fmt.Errorf("newGaussian: standard deviation must be "+
			"positive but got %v", stddev)
	}
	return newInitWFn(GaussianConfig{mean, stddev})
}

// Named returns the weight initializer with unit gain called name,
// one of glorot_uniform, glorot_normal, he_uniform, he_normal, or
// zeroes. Names are case insensitive.
func Named(name string) (*InitWFn, error) {
	switch strings.ToLower(name) {
	case "glorot_uniform":
		return NewGlorotU(1.0)
	case "glorot_normal":
		return NewGlorotN(1.0)
	case "he_uniform":
		return NewHeU(1.0)
	case "he_normal":
		return NewHeN(1.0)
	case "zeroes":
		return NewZeroes()
	}
	return nil, fmt.Errorf("named: unknown weight initializer %q", name)
}
