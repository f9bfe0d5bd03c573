package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TaskKind names one enrichment the planner can run for a resolved place.
type TaskKind string

const (
	TaskWeather TaskKind = "weather"
	TaskPlaces  TaskKind = "places"
)

// DefaultTasks is used when a plan request names no tasks.
var DefaultTasks = []TaskKind{TaskWeather, TaskPlaces}

var knownTasks = map[TaskKind]struct{}{
	TaskWeather: {},
	TaskPlaces:  {},
}

// ParseTaskKinds validates task names and removes duplicates, keeping the
// first occurrence order. An empty input yields DefaultTasks.
func ParseTaskKinds(names []string) ([]TaskKind, error) {
	if len(names) == 0 {
		return append([]TaskKind(nil), DefaultTasks...), nil
	}

	seen := make(map[TaskKind]struct{}, len(names))
	kinds := make([]TaskKind, 0, len(names))
	for _, n := range names {
		k := TaskKind(strings.ToLower(strings.TrimSpace(n)))
		if _, ok := knownTasks[k]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTask, n)
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// TaskResult is the outcome of one enrichment unit: either a value or a
// failure message, never both.
type TaskResult struct {
	Kind   TaskKind
	Value  any
	Failed bool
	Err    string
}

// Success builds a successful result carrying the adapter's value.
func Success(kind TaskKind, value any) TaskResult {
	return TaskResult{Kind: kind, Value: value}
}

// Failure builds a failed result from an adapter error.
func Failure(kind TaskKind, err error) TaskResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return TaskResult{Kind: kind, Failed: true, Err: msg}
}

// MarshalJSON renders a success as the bare value and a failure as {"error": msg}.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	if r.Failed {
		return json.Marshal(map[string]string{"error": r.Err})
	}
	return json.Marshal(r.Value)
}

// WeatherReport is the weather adapter's structured result.
type WeatherReport struct {
	TemperatureC                    *float64        `json:"temperature_c"`
	PrecipitationProbabilityPercent *float64        `json:"precipitation_probability_percent"`
	Raw                             json.RawMessage `json:"raw,omitempty"`
}

// PlaceInfo is a nearby point of interest returned by the places adapter.
type PlaceInfo struct {
	Name     string   `json:"name"`
	Category string   `json:"type,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
}
