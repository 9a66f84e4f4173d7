package shape

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Factory builds a shape from named scalar parameters.
type Factory func(params map[string]float64) (Shape, error)

var (
	registryMu   sync.RWMutex
	factories    = map[string]Factory{}
	registerOnce sync.Once
)

// RegisterDefaultTypes installs the built-in shape factories. It runs once
// per process; later calls are no-ops.
func RegisterDefaultTypes() {
	registerOnce.Do(func() {
		Register("box", buildBox)
		Register("sphere", buildSphere)
	})
}

func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

func Build(name string, params map[string]float64) (Shape, error) {
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, name)
	}
	s, err := f(params)
	if err != nil {
		return nil, err
	}
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %s %v", ErrDegenerate, name, params)
	}
	return s, nil
}

func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func param(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

func buildBox(params map[string]float64) (Shape, error) {
	b := NewBox(mgl64.Vec3{
		param(params, "hx", 0.5),
		param(params, "hy", 0.5),
		param(params, "hz", 0.5),
	}, param(params, "convex_radius", 0.05))
	b.Density = param(params, "density", DefaultDensity)
	return b, nil
}

func buildSphere(params map[string]float64) (Shape, error) {
	s := NewSphere(param(params, "radius", 0.5))
	s.Density = param(params, "density", DefaultDensity)
	return s, nil
}
