package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ai-trip-planner/internal/planner"
	"ai-trip-planner/internal/poi"
)

// Starter launches and cancels background planning pipelines. Implemented by
// planner.Runner.
type Starter interface {
	Start(s *planner.Session)
	Cancel(sessionID string) bool
}

// ArtifactPurger removes a session's export artifacts. Implemented by
// storage.ArtifactStore; may be nil.
type ArtifactPurger interface {
	Remove(sessionPrefix string) error
}

// Server holds the API's dependencies.
type Server struct {
	repo      *planner.SessionRepository
	starter   Starter
	artifacts ArtifactPurger
}

// NewServer creates the handler set. artifacts may be nil.
func NewServer(repo *planner.SessionRepository, starter Starter, artifacts ArtifactPurger) *Server {
	return &Server{repo: repo, starter: starter, artifacts: artifacts}
}

// PlanRequest is the POST /plan payload.
type PlanRequest struct {
	Destination string          `json:"destination" binding:"required"`
	StartDate   string          `json:"start_date" binding:"required"`
	EndDate     string          `json:"end_date" binding:"required"`
	Personas    []string        `json:"personas" binding:"required"`
	Constraints poi.Constraints `json:"constraints"`
	MaxPerDay   int             `json:"max_pois_per_day"`
}

const dateLayout = "2006-01-02"

// CreatePlan starts a new planning session. The pipeline runs in the
// background; the client polls the status endpoint.
func (s *Server) CreatePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD"})
		return
	}

	personas := make([]poi.Persona, 0, len(req.Personas))
	for _, raw := range req.Personas {
		p, ok := poi.ParsePersona(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown persona %q", raw)})
			return
		}
		personas = append(personas, p)
	}

	maxPerDay := req.MaxPerDay
	if maxPerDay == 0 {
		maxPerDay = 5
	}

	session, err := planner.NewSession(req.Destination, start, end, personas, req.Constraints, maxPerDay)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.Create(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	s.starter.Start(session)

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": session.ID,
		"stage":      session.Stage,
		"message": fmt.Sprintf(
			"Planning session started for %s. Poll /api/v1/plan/%s/status for updates.",
			session.Destination, session.ID),
	})
}

var progressMessages = map[planner.Stage]string{
	planner.StagePending:   "Initialising planning session...",
	planner.StageScraping:  "Discovering points of interest...",
	planner.StageVerifying: "Verifying each location against recent posts...",
	planner.StageRouting:   "Optimising daily routes...",
	planner.StageExporting: "Generating the itinerary document...",
	planner.StageCompleted: "Your itinerary is ready!",
}

// PlanStatus reports pipeline progress for polling clients.
func (s *Server) PlanStatus(c *gin.Context) {
	session, ok := s.lookup(c)
	if !ok {
		return
	}

	message := progressMessages[session.Stage]
	if session.Stage == planner.StageFailed {
		detail := session.ErrorDetail
		if detail == "" {
			detail = "unknown error"
		}
		message = "Planning failed: " + detail
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":       session.ID,
		"stage":            session.Stage,
		"progress_message": message,
		"total_scraped":    session.TotalScraped,
		"total_verified":   session.TotalVerified,
		"total_included":   session.TotalIncluded,
		"error_detail":     session.ErrorDetail,
	})
}

// PlanResult returns the finished itinerary. While the pipeline is still
// running it answers 202 so clients keep polling.
func (s *Server) PlanResult(c *gin.Context) {
	session, ok := s.lookup(c)
	if !ok {
		return
	}

	if !session.Stage.Terminal() {
		c.JSON(http.StatusAccepted, gin.H{
			"session_id": session.ID,
			"stage":      session.Stage,
			"message":    "Session still in progress: " + string(session.Stage),
		})
		return
	}

	result, err := s.repo.Result(c.Request.Context(), session.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
		return
	}

	message := "Itinerary generated successfully"
	if session.Stage == planner.StageFailed {
		message = "Session failed"
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":   session.ID,
		"stage":        session.Stage,
		"message":      message,
		"days":         result.Days,
		"document_url": session.DocumentURL,
		"map_url":      session.MapURL,
		"stats": gin.H{
			"total_scraped":  session.TotalScraped,
			"total_verified": session.TotalVerified,
			"total_included": session.TotalIncluded,
		},
	})
}

// CancelPlan aborts a running session and purges its record and artifacts.
func (s *Server) CancelPlan(c *gin.Context) {
	session, ok := s.lookup(c)
	if !ok {
		return
	}

	s.starter.Cancel(session.ID)
	if s.artifacts != nil {
		prefix := session.ID
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		if err := s.artifacts.Remove("itinerary_" + prefix); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove artifacts"})
			return
		}
	}
	if err := s.repo.Delete(c.Request.Context(), session.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"message":    "Planning session cancelled",
	})
}

func (s *Server) lookup(c *gin.Context) (*planner.Session, bool) {
	session, err := s.repo.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, planner.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Planning session not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return nil, false
	}
	return session, true
}
