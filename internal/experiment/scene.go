package experiment

import (
	"fmt"

	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/physics"
)

// Tracked is a body created from the scene description.
type Tracked struct {
	Name   string
	ID     body.BodyID
	Motion body.MotionType
}

// BuildWorld creates the world described by cfg and adds its bodies.
func BuildWorld(cfg *config.Config, opts ...physics.Option) (*physics.World, []Tracked, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	table, objVsBp, pairs, err := cfg.LayerTable()
	if err != nil {
		return nil, nil, err
	}

	s := physics.DefaultSettings()
	s.Layers = table
	s.ObjectVsBroadPhase = objVsBp
	s.PairFilter = pairs
	s.MaxBodies = cfg.World.MaxBodies
	s.NumBodyMutexes = cfg.World.NumBodyMutexes
	s.MaxBodyPairs = cfg.World.MaxBodyPairs
	s.MaxContactConstraints = cfg.World.MaxContactConstraints
	s.Gravity = cfg.Gravity()

	w, err := physics.New(s, opts...)
	if err != nil {
		return nil, nil, err
	}

	bi := w.BodyInterface()
	var tracked []Tracked
	for i := range cfg.Bodies {
		bc := &cfg.Bodies[i]
		sh, err := bc.BuildShape()
		if err != nil {
			return nil, nil, fmt.Errorf("body %s: %w", bc.Name, err)
		}
		for c := 0; c < bc.Copies(); c++ {
			cs, err := bc.CreationSettings(table, sh, c)
			if err != nil {
				return nil, nil, fmt.Errorf("body %s: %w", bc.Name, err)
			}
			cs.UserData = uint64(len(tracked))
			id, err := bi.CreateAndAdd(cs, bc.Activation())
			if err != nil {
				return nil, nil, fmt.Errorf("body %s: %w", bc.Name, err)
			}
			tracked = append(tracked, Tracked{Name: bodyName(bc, i, c), ID: id, Motion: cs.MotionType})
		}
	}
	return w, tracked, nil
}

func bodyName(bc *config.BodyConfig, i, c int) string {
	name := bc.Name
	if name == "" {
		name = fmt.Sprintf("body%d", i)
	}
	if bc.Copies() > 1 {
		name = fmt.Sprintf("%s%d", name, c)
	}
	return name
}
