// Package viz draws running flows in the terminal with Bubble Tea.
//
//   - [Live]: runs a simulator in the background and shows every frame
//   - [Heatmap]: colored half-block rendering of a cell field
//   - [Canvas]: Braille canvas used for velocity arrows
//   - [Pick]: preset picker
//
// # Key Bindings
//
//	Space - Pause/Resume (the solver waits while paused)
//	V     - Cycle field: vorticity, speed, pressure, u, v, arrows
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit and cancel the run
package viz
