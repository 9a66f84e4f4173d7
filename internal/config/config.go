package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/shape"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt             = 1.0 / 60
	DefaultDuration       = 3.0
	DefaultCollisionSteps = 1
	DefaultSubSteps       = 1
	DefaultScratchSize    = 10 << 20
	DefaultMaxJobs        = 2048
	DefaultMaxBarriers    = 8
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Scene          string  `yaml:"scene"`
	Dt             float64 `yaml:"dt"`
	Duration       float64 `yaml:"duration"`
	CollisionSteps int     `yaml:"collision_steps"`
	SubSteps       int     `yaml:"sub_steps"`
	// Threads of the job pool; 0 uses one per CPU.
	Threads     int          `yaml:"threads"`
	ScratchSize int          `yaml:"scratch_size"`
	World       WorldConfig  `yaml:"world"`
	Layers      *LayerConfig `yaml:"layers,omitempty"`
	Bodies      []BodyConfig `yaml:"bodies"`
}

type WorldConfig struct {
	MaxBodies             uint       `yaml:"max_bodies"`
	NumBodyMutexes        uint       `yaml:"num_body_mutexes"`
	MaxBodyPairs          uint       `yaml:"max_body_pairs"`
	MaxContactConstraints uint       `yaml:"max_contact_constraints"`
	Gravity               [3]float64 `yaml:"gravity"`
}

// LayerConfig replaces the default layer table. Object layer i is named
// Names[i] and lives in broad-phase layer BroadPhase[i]; Collide lists the
// pairs of layer names that collide.
type LayerConfig struct {
	Names      []string    `yaml:"names"`
	BroadPhase []uint8     `yaml:"broad_phase"`
	Collide    [][2]string `yaml:"collide"`
}

type BodyConfig struct {
	Name     string             `yaml:"name"`
	Shape    string             `yaml:"shape"`
	Params   map[string]float64 `yaml:"params,omitempty"`
	Motion   string             `yaml:"motion"`
	Layer    string             `yaml:"layer"`
	Position [3]float64         `yaml:"position"`
	Velocity [3]float64         `yaml:"velocity,omitempty"`
	// Count copies of the body are placed Spacing apart.
	Count       int          `yaml:"count,omitempty"`
	Spacing     [3]float64   `yaml:"spacing,omitempty"`
	Sensor      bool         `yaml:"sensor,omitempty"`
	Asleep      bool         `yaml:"asleep,omitempty"`
	Friction    *float64     `yaml:"friction,omitempty"`
	Restitution float64      `yaml:"restitution,omitempty"`
	Group       *GroupConfig `yaml:"group,omitempty"`
}

type GroupConfig struct {
	ID       uint32 `yaml:"id"`
	SubGroup uint32 `yaml:"sub_group"`
}

func DefaultConfig() *Config {
	return &Config{
		Scene:          "custom",
		Dt:             DefaultDt,
		Duration:       DefaultDuration,
		CollisionSteps: DefaultCollisionSteps,
		SubSteps:       DefaultSubSteps,
		ScratchSize:    DefaultScratchSize,
		World: WorldConfig{
			MaxBodies:             1024,
			MaxBodyPairs:          1024,
			MaxContactConstraints: 1024,
			Gravity:               [3]float64{0, -9.81, 0},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Steps is the number of world steps covering Duration.
func (c *Config) Steps() int {
	return int(c.Duration/c.Dt + 0.5)
}

func (c *Config) Gravity() mgl64.Vec3 { return mgl64.Vec3(c.World.Gravity) }

func (c *Config) Validate() error {
	switch {
	case !(c.Dt > 0):
		return fmt.Errorf("%w: dt must be positive", ErrInvalidConfig)
	case !(c.Duration > 0):
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	case c.CollisionSteps < 1 || c.SubSteps < 1:
		return fmt.Errorf("%w: collision_steps and sub_steps must be at least 1", ErrInvalidConfig)
	case c.ScratchSize <= 0:
		return fmt.Errorf("%w: scratch_size must be positive", ErrInvalidConfig)
	case c.World.MaxBodies == 0 || c.World.MaxBodyPairs == 0 || c.World.MaxContactConstraints == 0:
		return fmt.Errorf("%w: world limits must be positive", ErrInvalidConfig)
	}
	table, _, _, err := c.LayerTable()
	if err != nil {
		return err
	}
	total := 0
	for i := range c.Bodies {
		b := &c.Bodies[i]
		if _, err := ParseMotionType(b.Motion); err != nil {
			return fmt.Errorf("body %d (%s): %w", i, b.Name, err)
		}
		if _, ok := table.Lookup(b.Layer); !ok {
			return fmt.Errorf("%w: body %d (%s): unknown layer %q", ErrInvalidConfig, i, b.Name, b.Layer)
		}
		if _, err := b.BuildShape(); err != nil {
			return fmt.Errorf("body %d (%s): %w", i, b.Name, err)
		}
		total += b.Copies()
	}
	if uint(total) > c.World.MaxBodies {
		return fmt.Errorf("%w: %d bodies exceed max_bodies %d", ErrInvalidConfig, total, c.World.MaxBodies)
	}
	return nil
}

// LayerTable builds the layer table and filters the scene runs with.
func (c *Config) LayerTable() (*layers.Table, layers.ObjectVsBroadPhaseLayerFilter, layers.ObjectLayerPairFilter, error) {
	if c.Layers == nil {
		return layers.DefaultTable(), layers.DefaultObjectVsBroadPhase, layers.DefaultPairFilter, nil
	}
	lc := c.Layers
	if len(lc.Names) == 0 || len(lc.Names) != len(lc.BroadPhase) {
		return nil, nil, nil, fmt.Errorf("%w: layers need one broad_phase entry per name", ErrInvalidConfig)
	}
	mapping := make([]layers.BroadPhaseLayer, len(lc.BroadPhase))
	var numBP uint
	for i, bp := range lc.BroadPhase {
		mapping[i] = layers.BroadPhaseLayer(bp)
		numBP = max(numBP, uint(bp)+1)
	}
	table, err := layers.NewTable(mapping, numBP)
	if err != nil {
		return nil, nil, nil, err
	}
	table = table.WithNames(lc.Names...)

	pairs := make([][2]layers.ObjectLayer, 0, len(lc.Collide))
	for _, p := range lc.Collide {
		a, okA := table.Lookup(p[0])
		b, okB := table.Lookup(p[1])
		if !okA || !okB {
			return nil, nil, nil, fmt.Errorf("%w: collide pair %v names an unknown layer", ErrInvalidConfig, p)
		}
		pairs = append(pairs, [2]layers.ObjectLayer{a, b})
	}
	m, err := layers.NewPairMatrix(table.NumLayers(), pairs...)
	if err != nil {
		return nil, nil, nil, err
	}
	return table, layers.ObjectVsBroadPhaseFromPairs(table, m), m.Filter(), nil
}

func ParseMotionType(s string) (body.MotionType, error) {
	switch strings.ToLower(s) {
	case "static":
		return body.Static, nil
	case "kinematic":
		return body.Kinematic, nil
	case "dynamic", "":
		return body.Dynamic, nil
	}
	return 0, fmt.Errorf("%w: unknown motion type %q", ErrInvalidConfig, s)
}

func (b *BodyConfig) Copies() int { return max(b.Count, 1) }

func (b *BodyConfig) BuildShape() (shape.Shape, error) {
	shape.RegisterDefaultTypes()
	return shape.Build(b.Shape, b.Params)
}

// CreationSettings returns the settings of copy i of the body.
func (b *BodyConfig) CreationSettings(table *layers.Table, s shape.Shape, i int) (body.CreationSettings, error) {
	motion, err := ParseMotionType(b.Motion)
	if err != nil {
		return body.CreationSettings{}, err
	}
	layer, ok := table.Lookup(b.Layer)
	if !ok {
		return body.CreationSettings{}, fmt.Errorf("%w: unknown layer %q", ErrInvalidConfig, b.Layer)
	}
	pos := mgl64.Vec3(b.Position).Add(mgl64.Vec3(b.Spacing).Mul(float64(i)))
	cs := body.NewCreationSettings(s, pos, mgl64.QuatIdent(), motion, layer)
	cs.LinearVelocity = mgl64.Vec3(b.Velocity)
	cs.IsSensor = b.Sensor
	cs.Restitution = b.Restitution
	if b.Friction != nil {
		cs.Friction = *b.Friction
	}
	if b.Group != nil {
		cs.CollisionGroup = body.CollisionGroup{GroupID: b.Group.ID, SubGroupID: b.Group.SubGroup}
	}
	return cs, nil
}

// Activation of the body when it is added.
func (b *BodyConfig) Activation() body.Activation {
	if b.Asleep {
		return body.DontActivate
	}
	return body.Activate
}
