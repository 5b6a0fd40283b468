package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"securerip/internal/config"
	"securerip/internal/services"
)

// Requirement defines an external binary securerip relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// Requirements lists the binaries needed for cfg.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "cdparanoia",
			Command:     cfg.ParanoiaBinary(),
			Description: "Reads audio tracks and the table of contents",
		},
		{
			Name:        "eject",
			Command:     "eject",
			Description: "Opens the tray after a rip",
			Optional:    !cfg.Drive.EjectAfterRip,
		},
	}
	return reqs
}

// Check evaluates requirements in order.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		switch path, err := exec.LookPath(req.Command); {
		case req.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			status.Path = path
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// Verify returns a configuration error naming every missing required binary.
func Verify(statuses []Status) error {
	var missing []string
	for _, st := range statuses {
		if !st.Available && !st.Optional {
			missing = append(missing, st.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(
		services.ErrConfiguration,
		"deps",
		"verify binaries",
		fmt.Sprintf("missing required binaries: %s; install them or set drive.paranoia_binary", strings.Join(missing, ", ")),
		nil,
	)
}
