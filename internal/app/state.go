package app

// Screen is the view the model is currently showing.
type Screen int

const (
	screenMenu Screen = iota
	screenRunning
	screenFailed
	screenQuitting
)

func (s Screen) String() string {
	switch s {
	case screenMenu:
		return "menu"
	case screenRunning:
		return "running"
	case screenFailed:
		return "failed"
	case screenQuitting:
		return "quitting"
	}
	return "unknown"
}
