package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"homehub/internal/device"
	"homehub/internal/monitor"
	"homehub/internal/storage"

	"github.com/gin-gonic/gin"
)

func (s *Server) healthHandler(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	}
	if s.monitor != nil {
		body["polls"] = s.monitor.PollCounts()
		if last := s.monitor.LastPoll(); !last.IsZero() {
			body["last_poll"] = last
		}
	}
	if s.dashboard != nil {
		body["dashboard_running"] = s.dashboard.Running()
		body["warning"] = s.dashboard.Warning()
	}
	if s.worker != nil {
		body["worker_running"] = s.worker.Running()
	}
	if s.realtime != nil {
		body["realtime_running"] = s.realtime.Running()
	}
	respond(c, http.StatusOK, body)
}

// statusHandler returns the latest unified status. refresh=1, or no status
// yet, runs a manual cycle first.
func (s *Server) statusHandler(c *gin.Context) {
	latest := s.monitor.Latest()
	if latest == nil || c.Query("refresh") == "1" {
		cycle, err := s.monitor.PollOnce(c.Request.Context(), monitor.SourceManual)
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, err)
			return
		}
		latest = &cycle.Status
	}

	warning := false
	if s.dashboard != nil {
		warning = s.dashboard.Warning()
	}
	respond(c, http.StatusOK, gin.H{
		"status":  latest,
		"warning": warning,
	})
}

func (s *Server) probeHandler(c *gin.Context) {
	cfg, err := s.monitor.LoadConfig()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"modules": s.controller.Probe(c.Request.Context(), cfg),
	})
}

// historyHandler serves the inverter aggregates and the decoded load
// controller timeline (kind "load").
func (s *Server) historyHandler(c *gin.Context) {
	cfg, err := s.monitor.LoadConfig()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	ctx := c.Request.Context()
	kind := c.Param("kind")
	if kind == "load" {
		fields, err := s.controller.FetchHistory(ctx, cfg, device.HistoryLoad, "")
		if err != nil {
			respondError(c, deviceErrorStatus(err), err)
			return
		}
		timeline, err := device.DecodeTimeline(fields, time.Local)
		if err != nil {
			respondError(c, http.StatusBadGateway, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"kind": kind, "timeline": timeline})
		return
	}

	param := c.Query("date")
	if kind == string(device.HistoryMonthly) {
		param = c.Query("month")
	}
	fields, err := s.controller.FetchHistory(ctx, cfg, device.HistoryKind(kind), param)
	if err != nil {
		respondError(c, deviceErrorStatus(err), err)
		return
	}
	respond(c, http.StatusOK, gin.H{"kind": kind, "data": fields})
}

func (s *Server) eventsHandler(c *gin.Context) {
	limit := storage.DefaultJournalLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	entries, err := s.db.Journal().List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"events": entries})
}

func (s *Server) clearEventsHandler(c *gin.Context) {
	if err := s.db.Journal().Clear(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"ok": true})
}

func (s *Server) readingsHandler(c *gin.Context) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	limitStr := c.DefaultQuery("limit", "100")

	limit, _ := strconv.Atoi(limitStr)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	ctx := c.Request.Context()
	if fromStr != "" && toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, errors.New("invalid 'from' date format"))
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, errors.New("invalid 'to' date format"))
			return
		}

		readings, err := s.db.GetReadingsByRange(ctx, from, to)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"readings": readings})
		return
	}

	readings, err := s.db.GetReadingsWithLimit(ctx, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"readings": readings})
}

func (s *Server) latestReadingHandler(c *gin.Context) {
	reading, err := s.db.GetLatestReading(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"reading": reading})
}

func (s *Server) dailyStatsHandler(c *gin.Context) {
	dateStr := c.DefaultQuery("date", time.Now().Format("2006-01-02"))
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		respondError(c, http.StatusBadRequest, errors.New("invalid date format"))
		return
	}

	stats, err := s.db.GetDailyStats(c.Request.Context(), date)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"stats": stats})
}
