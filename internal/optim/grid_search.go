package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/experiment"
)

var ErrUnknownParam = errors.New("optim: unknown parameter")

// Knobs are the scene settings a grid can sweep.
var Knobs = map[string]func(c *config.Config, v float64){
	"dt":              func(c *config.Config, v float64) { c.Dt = v },
	"collision_steps": func(c *config.Config, v float64) { c.CollisionSteps = int(v) },
	"sub_steps":       func(c *config.Config, v float64) { c.SubSteps = int(v) },
	"gravity_y":       func(c *config.Config, v float64) { c.World.Gravity[1] = v },
}

func KnobNames() []string {
	names := make([]string, 0, len(Knobs))
	for k := range Knobs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Trial is one point of the grid and the metric it produced.
type Trial struct {
	Params map[string]float64
	Value  float64
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64, workers int) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d params but %d ranges", len(params), len(ranges))
	}
	for _, p := range params {
		if _, ok := Knobs[p]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParam, p)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, workers: workers}, nil
}

// Search runs every point of the grid on a copy of base as one ensemble
// and returns the trials sorted by metric, lowest first.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string, opts ...experiment.Option) ([]Trial, error) {
	var points []map[string]float64
	g.expand(0, make(map[string]float64), &points)

	configs := make([]*config.Config, len(points))
	for i, p := range points {
		c := *base
		for name, v := range p {
			Knobs[name](&c, v)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("grid point %v: %w", p, err)
		}
		configs[i] = &c
	}

	results, err := experiment.NewEnsemble(configs, g.workers, opts...).Run(ctx)
	if err != nil {
		return nil, err
	}

	trials := make([]Trial, len(points))
	for i, r := range results {
		val, ok := r.Metrics[metricName]
		if !ok {
			val = math.Inf(1)
		}
		trials[i] = Trial{Params: points[i], Value: val}
	}
	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Value < trials[j].Value })
	return trials, nil
}

func (g *GridSearch) expand(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		g.expand(depth+1, current, out)
	}
	delete(current, paramName)
}
