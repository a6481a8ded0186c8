package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// AnalysisResponse describes one analysis run in a transport-friendly format.
type AnalysisResponse struct {
	RunID         string        `json:"runId"`
	File          string        `json:"file"`
	Outcome       string        `json:"outcome"`
	Message       string        `json:"message"`
	Dominant      string        `json:"dominant,omitempty"`
	Total         int           `json:"total"`
	Entries       []TallyEntry  `json:"entries"`
	Frames        FrameCounters `json:"frames"`
	FrameRate     float64       `json:"frameRate"`
	Interval      int           `json:"interval"`
	StartedAt     string        `json:"startedAt,omitempty"`
	FinishedAt    string        `json:"finishedAt,omitempty"`
	DurationMS    int64         `json:"durationMs"`
	FailureReason string        `json:"failureReason,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// TallyEntry is one emotion row of the ranked tally.
type TallyEntry struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// FrameCounters reports how many frames reached each stage of the scan.
type FrameCounters struct {
	Read    int `json:"read"`
	Sampled int `json:"sampled"`
	Tallied int `json:"tallied"`
	NoFace  int `json:"noFace"`
	Skipped int `json:"skipped"`
}

// HealthResponse aggregates readiness checks for the server.
type HealthResponse struct {
	Status       string             `json:"status"`
	Classifier   string             `json:"classifier"`
	Checks       []CheckStatus      `json:"checks"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}

// CheckStatus mirrors one preflight result.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// ErrorResponse is returned for requests that never reached the analyzer.
type ErrorResponse struct {
	Error string `json:"error"`
}
