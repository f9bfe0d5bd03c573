package domain

import (
	"strconv"
	"strings"
)

const (
	// NoTasksText is the summary when no task produced any text.
	NoTasksText = "No tasks requested."

	placesHeader = "And these are the places you can go:"
	noPlacesText = "I couldn't find tourist places nearby."
)

// Compose renders the human-readable summary for a plan. It is pure: the
// weather fragment always precedes the places fragment and failed results
// contribute nothing.
func Compose(place string, results map[TaskKind]TaskResult) string {
	parts := make([]string, 0, 2)

	if frag := weatherFragment(place, results[TaskWeather]); frag != "" {
		parts = append(parts, frag)
	}
	if frag := placesFragment(results[TaskPlaces]); frag != "" {
		parts = append(parts, frag)
	}

	if len(parts) == 0 {
		return NoTasksText
	}
	return strings.Join(parts, " ")
}

func weatherFragment(place string, r TaskResult) string {
	if r.Failed {
		return ""
	}
	var report WeatherReport
	switch v := r.Value.(type) {
	case WeatherReport:
		report = v
	case *WeatherReport:
		if v == nil {
			return ""
		}
		report = *v
	default:
		return ""
	}
	if report.TemperatureC == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("In ")
	b.WriteString(place)
	b.WriteString(" it's currently ")
	b.WriteString(formatTemperature(*report.TemperatureC))
	b.WriteString("°C")
	if p := report.PrecipitationProbabilityPercent; p != nil {
		b.WriteString(" with a chance of ")
		b.WriteString(formatNumber(*p))
		b.WriteString("% to rain.")
	} else {
		b.WriteString(".")
	}
	return b.String()
}

func placesFragment(r TaskResult) string {
	if r.Failed {
		return ""
	}
	places, ok := r.Value.([]PlaceInfo)
	if !ok {
		return ""
	}
	if len(places) == 0 {
		return noPlacesText
	}

	var b strings.Builder
	b.WriteString(placesHeader)
	for _, p := range places {
		b.WriteString("\n- ")
		b.WriteString(p.Name)
	}
	return b.String()
}

// formatNumber prints the shortest decimal form: 21.5 stays 21.5, 40 stays 40.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatTemperature keeps at least one decimal place, so 21 prints as 21.0.
func formatTemperature(v float64) string {
	s := formatNumber(v)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
