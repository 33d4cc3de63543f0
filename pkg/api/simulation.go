package api

import (
	"time"
)

// SimulationType selects the execution path a worker takes for a simulation.
type SimulationType string

const (
	SimulationTypePowerflow SimulationType = "Powerflow"
	SimulationTypeOutage    SimulationType = "Outage"
)

// SimulationTypes lists every accepted SimulationType.
var SimulationTypes = []SimulationType{SimulationTypePowerflow, SimulationTypeOutage}

// ParseSimulationType converts a client supplied string into a SimulationType.
// Matching is exact; there is no default.
func ParseSimulationType(s string) (SimulationType, bool) {
	for _, t := range SimulationTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// SimulationStatus describes how far a stored record got through submission.
// The execution layer may write further statuses back into the same record.
type SimulationStatus string

const (
	// SimulationStatusStored records have been written and, unless a later
	// stage failed, handed to the execution layer.
	SimulationStatusStored SimulationStatus = "Stored"
	// SimulationStatusIncomplete records were written but their profile data
	// could not be ingested. They are never published.
	SimulationStatusIncomplete SimulationStatus = "Incomplete"
)

type Simulation struct {
	SimulationId    uint64            `json:"simulation_id"`
	SimulationType  SimulationType    `json:"simulation_type"`
	ModelId         string            `json:"model_id"`
	Name            string            `json:"name,omitempty"`
	LoadProfileId   string            `json:"load_profile_id,omitempty"`
	Parameters      map[string]string `json:"parameters,omitempty"`
	LoadProfileKey  string            `json:"load_profile_key,omitempty"`
	LoadProfileData []string          `json:"load_profile_data,omitempty"`
	ResultsId       string            `json:"results_id,omitempty"`
	ResultsData     string            `json:"results_data,omitempty"`
	Status          SimulationStatus  `json:"status"`
	Error           string            `json:"error,omitempty"`
	Created         time.Time         `json:"created"`
}

// JobDescriptor is the message handed to the execution layer.
// It carries a handle to the profile data rather than the data itself;
// workers resolve the full record and the profile set by id.
type JobDescriptor struct {
	SimulationId    uint64            `json:"simulation_id"`
	SimulationType  SimulationType    `json:"simulation_type"`
	ModelId         string            `json:"model_id"`
	ModelUrl        string            `json:"model_url,omitempty"`
	LoadProfileKey  string            `json:"load_profile_key,omitempty"`
	LoadProfileData []string          `json:"load_profile_data,omitempty"`
	Parameters      map[string]string `json:"parameters,omitempty"`
}

func NewJobDescriptor(s *Simulation) *JobDescriptor {
	return &JobDescriptor{
		SimulationId:    s.SimulationId,
		SimulationType:  s.SimulationType,
		ModelId:         s.ModelId,
		LoadProfileKey:  s.LoadProfileKey,
		LoadProfileData: s.LoadProfileData,
		Parameters:      s.Parameters,
	}
}

// Route describes one endpoint of the HTTP API.
type Route struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Doc    string `json:"doc"`
	// Link to the endpoint's entry in the human readable api documentation.
	Link string `json:"link,omitempty"`
}

// SubmitResponse is returned when a simulation has been accepted.
type SubmitResponse struct {
	SimulationId uint64      `json:"simulation_id"`
	Simulation   *Simulation `json:"simulation"`
}

// ErrorResponse is the body of every non-2xx reply.
// SimulationId is set when the request failed after a record had been created for it.
type ErrorResponse struct {
	Error        string   `json:"error"`
	Stage        string   `json:"stage,omitempty"`
	SimulationId uint64   `json:"simulation_id,omitempty"`
	Details      []string `json:"details,omitempty"`
}
