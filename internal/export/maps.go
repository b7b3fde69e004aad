package export

import (
	"fmt"
	"strings"

	"ai-trip-planner/internal/poi"
)

// DirectionsURL builds a Google Maps directions link visiting every stop in
// itinerary order. It returns "" when fewer than two stops carry coordinates.
func DirectionsURL(days []poi.ItineraryDay) string {
	var pts []string
	for _, day := range days {
		for _, stop := range day.Stops {
			if stop.Candidate.Coords == nil {
				continue
			}
			pts = append(pts, fmt.Sprintf("%.6f,%.6f",
				stop.Candidate.Coords.Lat, stop.Candidate.Coords.Lng))
		}
	}
	if len(pts) < 2 {
		return ""
	}

	origin, dest := pts[0], pts[len(pts)-1]
	if len(pts) > 2 {
		waypoints := strings.Join(pts[1:len(pts)-1], "|")
		return fmt.Sprintf("https://www.google.com/maps/dir/%s/%s?waypoints=%s", origin, dest, waypoints)
	}
	return fmt.Sprintf("https://www.google.com/maps/dir/%s/%s", origin, dest)
}
