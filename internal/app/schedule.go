package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// GET /workout_schedule
func (a *App) GetScheduleHandler(c *gin.Context) {
	ws, err := a.Store.GetSchedule(c.Request.Context())
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, ws)
}

type saveScheduleReq struct {
	Version   *int              `json:"version"`
	StartDate string            `json:"startDate"`
	EndDate   string            `json:"endDate"`
	Workouts  map[string]string `json:"workouts"`
}

// PUT /workout_schedule
// The body carries the version it was based on; a stale version yields 409.
func (a *App) SaveScheduleHandler(c *gin.Context) {
	var req saveScheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Version == nil {
		respondError(c, http.StatusBadRequest, "version is required")
		return
	}

	ws, err := normalizeSchedule(req)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	if err := a.Store.SaveSchedule(c.Request.Context(), ws, *req.Version); err != nil {
		a.respondErr(c, err)
		return
	}
	a.Log.Info("workout schedule saved", "version", ws.Version, "subject", c.GetString(ctxSubject))
	respondData(c, http.StatusOK, ws)
}

// normalizeSchedule validates the request and canonicalises weekday keys.
func normalizeSchedule(req saveScheduleReq) (*WorkoutSchedule, error) {
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("startDate must be YYYY-MM-DD: %w", ErrValidation)
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("endDate must be YYYY-MM-DD: %w", ErrValidation)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("endDate before startDate: %w", ErrValidation)
	}
	if len(req.Workouts) == 0 {
		return nil, fmt.Errorf("workouts are required: %w", ErrValidation)
	}

	workouts := make(map[string]string, len(req.Workouts))
	for k, v := range req.Workouts {
		day, ok := weekdayByName(k)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q: %w", k, ErrValidation)
		}
		workouts[day.String()] = strings.TrimSpace(v)
	}

	return &WorkoutSchedule{
		Version:   *req.Version + 1,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Workouts:  workouts,
	}, nil
}

func weekdayByName(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(strings.TrimSpace(s), d.String()) {
			return d, true
		}
	}
	return 0, false
}
