package export

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"ai-trip-planner/internal/planner"
	"ai-trip-planner/internal/poi"
	"ai-trip-planner/internal/storage"
)

// Exporter renders finished itineraries into a styled PDF plus a Google Maps
// directions link. When PDF generation fails it degrades to a plain-text
// itinerary so the session still completes with an artifact.
type Exporter struct {
	store *storage.ArtifactStore
}

// NewExporter creates an Exporter writing into the given artifact store.
func NewExporter(store *storage.ArtifactStore) *Exporter {
	return &Exporter{store: store}
}

// Export implements planner.Exporter.
func (e *Exporter) Export(ctx context.Context, s *planner.Session, days []poi.ItineraryDay) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	mapURL := DirectionsURL(days)
	prefix := artifactPrefix(s.ID)

	data, err := e.buildPDF(s, days, mapURL)
	if err != nil {
		log.Printf("session %s: pdf generation failed, writing text fallback: %v", s.ID, err)
		docURL, saveErr := e.store.Save(prefix+".txt", buildText(s, days))
		if saveErr != nil {
			return "", "", fmt.Errorf("failed to save text fallback: %w", saveErr)
		}
		return docURL, mapURL, nil
	}

	docURL, err := e.store.Save(prefix+".pdf", data)
	if err != nil {
		return "", "", fmt.Errorf("failed to save itinerary pdf: %w", err)
	}
	return docURL, mapURL, nil
}

func artifactPrefix(sessionID string) string {
	id := sessionID
	if len(id) > 8 {
		id = id[:8]
	}
	return "itinerary_" + id
}

func personaLabel(personas []poi.Persona) string {
	labels := make([]string, len(personas))
	for i, p := range personas {
		labels[i] = capitalize(string(p))
	}
	return strings.Join(labels, ", ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (e *Exporter) buildPDF(s *planner.Session, days []poi.ItineraryDay, mapURL string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(232, 51, 93)
	pdf.CellFormat(0, 12, "Trip Planner", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s  |  %s - %s  |  %s Style",
		s.Destination,
		s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"),
		personaLabel(s.Personas),
	), "", 1, "L", false, 0, "")
	pdf.SetDrawColor(232, 51, 93)
	pdf.SetLineWidth(0.6)
	pdf.Line(20, pdf.GetY()+2, 190, pdf.GetY()+2)
	pdf.Ln(8)

	// Stats row
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(232, 51, 93)
	pdf.SetTextColor(255, 255, 255)
	for _, h := range []string{"POIs Discovered", "POIs Verified", "POIs Included"} {
		pdf.CellFormat(56, 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "B", 16)
	pdf.SetFillColor(255, 245, 247)
	pdf.SetTextColor(34, 34, 34)
	for _, n := range []int{s.TotalScraped, s.TotalVerified, s.TotalIncluded} {
		pdf.CellFormat(56, 12, fmt.Sprintf("%d", n), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(18)

	// Daily itinerary
	for _, day := range days {
		if len(day.Stops) == 0 {
			continue
		}
		date := s.StartDate.AddDate(0, 0, day.Index-1)

		pdf.SetFont("Arial", "B", 15)
		pdf.SetTextColor(232, 51, 93)
		pdf.CellFormat(0, 10, fmt.Sprintf("Day %d - %s", day.Index, date.Format("Monday, January 02")),
			"", 1, "L", false, 0, "")
		if day.TravelKm > 0 {
			pdf.SetFont("Arial", "I", 9)
			pdf.SetTextColor(102, 102, 102)
			pdf.CellFormat(0, 6, fmt.Sprintf("Approx. %.1f km of travel", day.TravelKm), "", 1, "L", false, 0, "")
		}

		for i, stop := range day.Stops {
			pdf.SetFont("Arial", "B", 12)
			pdf.SetTextColor(34, 34, 34)
			pdf.CellFormat(0, 8, fmt.Sprintf("%d. %s", i+1, stop.Candidate.Name), "", 1, "L", false, 0, "")

			pdf.SetFont("Arial", "", 9)
			pdf.SetTextColor(85, 85, 85)
			if stop.Candidate.Address != "" {
				pdf.CellFormat(0, 5, "    "+stop.Candidate.Address, "", 1, "L", false, 0, "")
			}
			detail := fmt.Sprintf("    Confidence %.0f%%", stop.Confidence*100)
			if len(stop.Flags) > 0 {
				flags := make([]string, len(stop.Flags))
				for j, f := range stop.Flags {
					flags[j] = string(f)
				}
				detail += "  [" + strings.Join(flags, ", ") + "]"
			}
			pdf.CellFormat(0, 5, detail, "", 1, "L", false, 0, "")
			if stop.Note != "" {
				pdf.MultiCell(0, 5, "    "+stop.Note, "", "L", false)
			}
			pdf.Ln(1)
		}
		pdf.Ln(4)
	}

	// QR code linking to the directions URL
	if mapURL != "" {
		if qr, err := qrcode.Encode(mapURL, qrcode.Medium, 256); err == nil {
			opts := gofpdf.ImageOptions{ImageType: "png"}
			pdf.RegisterImageOptionsReader("route-qr", opts, bytes.NewReader(qr))
			pdf.ImageOptions("route-qr", 155, 245, 35, 35, false, opts, 0, "")
			pdf.SetXY(20, 250)
			pdf.SetFont("Arial", "I", 9)
			pdf.SetTextColor(102, 102, 102)
			pdf.MultiCell(120, 5, "Scan for turn-by-turn directions through every stop.", "", "L", false)
		}
	}

	// Footer
	pdf.SetY(-25)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(170, 170, 170)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", time.Now().Format("2006-01-02 15:04")),
		"T", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildText is the dependency-free fallback rendering.
func buildText(s *planner.Session, days []poi.ItineraryDay) []byte {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "TRAVEL ITINERARY")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Destination : %s\n", s.Destination)
	fmt.Fprintf(&b, "Dates       : %s - %s\n",
		s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Style       : %s\n", personaLabel(s.Personas))

	for _, day := range days {
		if len(day.Stops) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n--- DAY %d ---\n", day.Index)
		for i, stop := range day.Stops {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, stop.Candidate.Name)
			if stop.Candidate.Address != "" {
				fmt.Fprintf(&b, "     %s\n", stop.Candidate.Address)
			}
			if stop.Note != "" {
				fmt.Fprintf(&b, "     %s\n", stop.Note)
			}
		}
	}

	fmt.Fprintf(&b, "\n%s\n", rule)
	return []byte(b.String())
}
