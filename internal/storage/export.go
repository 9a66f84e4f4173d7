package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/experiment"
)

type ExportData struct {
	Scene          string             `json:"scene"`
	Dt             float64            `json:"dt"`
	Duration       float64            `json:"duration"`
	CollisionSteps int                `json:"collision_steps"`
	SubSteps       int                `json:"sub_steps"`
	Steps          int                `json:"steps"`
	Columns        []string           `json:"columns"`
	Times          []float64          `json:"times"`
	States         [][]float64        `json:"states"`
	Metrics        map[string]float64 `json:"metrics"`
}

func NewExportData(cfg *config.Config, result *experiment.Result) ExportData {
	return ExportData{
		Scene:          cfg.Scene,
		Dt:             cfg.Dt,
		Duration:       cfg.Duration,
		CollisionSteps: cfg.CollisionSteps,
		SubSteps:       cfg.SubSteps,
		Steps:          result.Steps,
		Columns:        result.Columns,
		Times:          result.Times,
		States:         result.States,
		Metrics:        result.Metrics,
	}
}

func WriteJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, cfg *config.Config, result *experiment.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, NewExportData(cfg, result))
}

func ExportJSONStdout(cfg *config.Config, result *experiment.Result) error {
	return WriteJSON(os.Stdout, NewExportData(cfg, result))
}
