package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary and whether moodreel can run without it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement plus the result of looking it up. When Available,
// Command holds the resolved path.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Check resolves req against PATH.
func Check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

// CheckBinaries runs Check over requirements, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		statuses[i] = Check(req)
	}
	return statuses
}

