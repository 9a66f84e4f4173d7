// Package viz renders a running scene in the terminal.
//
// [Model] is a Bubble Tea program that steps an experiment on every tick
// and draws the side view (x right, y up) of every body's bounding box on
// a Braille [Canvas]. Awake bodies are filled, sleeping ones outlined.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	S     - Single step while paused
//	R     - Rebuild the scene from its config
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
//	Q     - Quit
//
// # Recording
//
// G starts capturing canvas frames; pressing it again writes them to
// simulation.gif in the current directory.
package viz
