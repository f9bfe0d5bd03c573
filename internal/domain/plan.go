package domain

import "time"

// PlanResult is the response to a single plan request.
type PlanResult struct {
	OK     bool                    `json:"ok"`
	Place  string                  `json:"place,omitempty"`
	Coords *Coords                 `json:"coords,omitempty"`
	Text   string                  `json:"text,omitempty"`
	Raw    map[TaskKind]TaskResult `json:"raw,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// PlanEvent is the audit record emitted for every answered plan request.
type PlanEvent struct {
	ID          string     `json:"id"`
	Place       string     `json:"place"`
	PlaceKey    string     `json:"place_key"`
	OK          bool       `json:"ok"`
	Coords      *Coords    `json:"coords,omitempty"`
	Tasks       []TaskKind `json:"tasks,omitempty"`
	FailedTasks []TaskKind `json:"failed_tasks,omitempty"`
	Error       string     `json:"error,omitempty"`
	At          time.Time  `json:"at"`
}
