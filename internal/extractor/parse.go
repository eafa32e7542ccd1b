package extractor

import (
	"fmt"
	"strings"

	"github.com/maptrack/maptrack/internal/tracking"
)

// splitLines breaks rendered body text into trimmed, non-empty lines.
func splitLines(body string) []string {
	raw := strings.Split(body, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

// parseStatus locates the four anchor labels by substring match and takes
// the line following each as the field value. A missing anchor means the
// page changed shape or the id was not found.
func parseStatus(number, body string) (tracking.ContainerStatus, error) {
	lines := splitLines(body)

	locIdx, ok := findAnchor(lines, anchorLocation)
	if !ok {
		return tracking.ContainerStatus{}, fmt.Errorf("anchor %q missing: %w", anchorLocation, ErrParse)
	}
	actIdx, ok := findAnchor(lines, anchorAction)
	if !ok {
		return tracking.ContainerStatus{}, fmt.Errorf("anchor %q missing: %w", anchorAction, ErrParse)
	}
	ctryIdx, ok := findAnchor(lines, anchorCountry)
	if !ok {
		return tracking.ContainerStatus{}, fmt.Errorf("anchor %q missing: %w", anchorCountry, ErrParse)
	}
	tsIdx, ok := findAnchor(lines, anchorTimestamp)
	if !ok {
		return tracking.ContainerStatus{}, fmt.Errorf("anchor %q missing: %w", anchorTimestamp, ErrParse)
	}

	return tracking.ContainerStatus{
		Number:    number,
		Location:  lineAfter(lines, locIdx),
		Action:    lineAfter(lines, actIdx),
		Country:   lineAfter(lines, ctryIdx),
		Timestamp: lineAfter(lines, tsIdx),
	}, nil
}

func findAnchor(lines []string, anchor string) (int, bool) {
	for i, l := range lines {
		if strings.Contains(l, anchor) {
			return i, true
		}
	}
	return 0, false
}

func lineAfter(lines []string, idx int) string {
	if idx+1 < len(lines) {
		return lines[idx+1]
	}
	return "N/A"
}
