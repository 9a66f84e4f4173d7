package viz

import (
	"fmt"
	"image"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/experiment"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/shape"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	gifPath         = "simulation.gif"
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(45)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model steps an experiment on every tick and draws it.
type Model struct {
	cfg  *config.Config
	opts []experiment.Option
	exp  *experiment.Experiment

	canvas        *Canvas
	view          Viewport
	frame         experiment.Frame
	energyHistory []float64
	activeHistory []float64
	running       bool
	err           error
	theme         Theme
	showHelp      bool
	recording     bool
	frames        []*image.Paletted
}

// NewModel builds the scene described by cfg.
func NewModel(cfg *config.Config, opts ...experiment.Option) (*Model, error) {
	m := &Model{
		cfg:     cfg,
		opts:    opts,
		canvas:  NewCanvas(width, height),
		running: true,
		theme:   ThemeCyberpunk,
	}
	if err := m.reset(); err != nil {
		return nil, err
	}
	return m, nil
}

// Close stops the experiment's job pool.
func (m *Model) Close() {
	if m.exp != nil {
		m.exp.Close()
	}
}

func (m *Model) reset() error {
	exp, err := experiment.New(m.cfg, m.opts...)
	if err != nil {
		return err
	}
	m.Close()
	m.exp = exp
	m.frame = experiment.Frame{Bodies: exp.World().Snapshot()}
	m.energyHistory = m.energyHistory[:0]
	m.activeHistory = m.activeHistory[:0]
	m.err = nil

	var movable []shape.AABB
	for _, b := range m.boxes() {
		if b.motion != body.Static {
			movable = append(movable, b.bounds)
		}
	}
	m.view = FitViewport(movable, m.canvas.PixelWidth(), m.canvas.PixelHeight())
	m.draw()
	return nil
}

func (m *Model) Init() tea.Cmd { return tick() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "s":
			if !m.running {
				m.step()
			}
		case "r":
			if err := m.reset(); err != nil {
				m.err = err
			}
		case "t":
			m.theme = nextTheme(m.theme)
		case "g":
			m.toggleRecording()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		if m.recording && len(m.frames) < maxFrames {
			m.frames = append(m.frames, captureFrame(m.canvas))
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) toggleRecording() {
	if !m.recording {
		m.recording = true
		m.frames = m.frames[:0]
		return
	}
	m.recording = false
	if err := saveGIF(gifPath, m.frames); err != nil {
		m.err = err
	}
	m.frames = nil
}

// step advances the scene once. A failed step pauses the view and keeps
// the error on screen; the world itself is unchanged by it.
func (m *Model) step() {
	f, err := m.exp.Step()
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.frame = f
	m.energyHistory = appendCapped(m.energyHistory, metrics.MechanicalEnergy(f.Bodies, m.exp.World().Gravity()))
	m.activeHistory = appendCapped(m.activeHistory, float64(f.Stats.ActiveBodies))
	m.draw()
}

func appendCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

type box struct {
	bounds shape.AABB
	motion body.MotionType
	active bool
}

// boxes reads the current bounds of every scene body under its read lock.
func (m *Model) boxes() []box {
	w := m.exp.World()
	locks := w.LockInterface()
	out := make([]box, 0, len(m.exp.Bodies()))
	for _, t := range m.exp.Bodies() {
		locks.Read(t.ID, func(b *body.Body) {
			if b.IsInBroadPhase() {
				out = append(out, box{bounds: b.Bounds(), motion: b.MotionType(), active: w.Store().IsBodyActive(b)})
			}
		})
	}
	return out
}

func (m *Model) draw() {
	m.canvas.Clear()
	for _, b := range m.boxes() {
		x0, y0 := m.view.ToPixel(b.bounds.Min[0], b.bounds.Max[1])
		x1, y1 := m.view.ToPixel(b.bounds.Max[0], b.bounds.Min[1])
		if b.active {
			m.canvas.FillRect(x0, y0, x1, y1)
		} else {
			m.canvas.DrawRect(x0, y0, x1, y1)
		}
	}
}

func (m *Model) status() string {
	switch {
	case m.err != nil:
		return lipgloss.NewStyle().Foreground(m.theme.Error).Render("ERROR")
	case m.recording:
		return lipgloss.NewStyle().Foreground(m.theme.Error).Bold(true).Render("RECORDING")
	case !m.running:
		return lipgloss.NewStyle().Foreground(m.theme.Warning).Render("PAUSED")
	}
	return lipgloss.NewStyle().Foreground(m.theme.Primary).Render("RUNNING")
}

func (m *Model) View() string {
	header := lipgloss.NewStyle().Foreground(m.theme.Primary).Bold(true).MarginBottom(1)
	canvasView := canvasStyle.Foreground(m.theme.Primary).Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(header.Render(strings.ToUpper(m.cfg.Scene)) + "\n")
	s.WriteString(m.status() + "\n\n")
	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(lipgloss.NewStyle().Foreground(m.theme.Accent).Render(chart) + "\n\n")
	}

	st := m.frame.Stats
	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.frame.Time))
	row("Step", fmt.Sprintf("%d", m.frame.Step))
	row("Bodies", fmt.Sprintf("%d (%d awake)", m.exp.World().NumBodies(), m.exp.World().NumActiveBodies()))
	row("Pairs", fmt.Sprintf("%d (%d dropped)", st.Pairs, st.DroppedPairs))
	row("Contacts", fmt.Sprintf("%d (%d dropped)", st.Contacts, st.DroppedContacts))
	row("Scratch", fmt.Sprintf("%d / %d B", m.exp.Allocator().HighWater(), m.exp.Allocator().Capacity()))
	row("Step time", st.Duration.Round(time.Microsecond).String())
	row("Theme", m.theme.Name)
	if m.err != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(m.theme.Error).Width(40).Render(m.err.Error()) + "\n")
	}

	help := "space pause • s step • r reset • t theme • g gif • ? help • q quit"
	if m.showHelp {
		help = "space  pause/resume\ns      single step (paused)\nr      rebuild scene\nt      cycle theme\ng      toggle GIF recording\nq      quit"
	}
	s.WriteString(helpStyle.Render(help))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}

// Run shows the scene until the user quits.
func Run(cfg *config.Config, opts ...experiment.Option) error {
	m, err := NewModel(cfg, opts...)
	if err != nil {
		return err
	}
	defer m.Close()
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
