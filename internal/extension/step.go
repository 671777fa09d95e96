package extension

// InstallStep is the progress of one install or update pipeline.
type InstallStep int

const (
	StepIdle InstallStep = iota
	StepPending
	StepDownloading
	StepInstalling
	StepInstalled
	StepError
)

var stepNames = [...]string{
	StepIdle:        "idle",
	StepPending:     "pending",
	StepDownloading: "downloading",
	StepInstalling:  "installing",
	StepInstalled:   "installed",
	StepError:       "error",
}

func (s InstallStep) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

// IsTerminal reports whether no further steps follow s.
func (s InstallStep) IsTerminal() bool {
	return s == StepInstalled || s == StepError
}
