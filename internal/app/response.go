package app

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// respondErr maps store and service errors onto the HTTP error taxonomy.
// Unexpected errors are logged and hidden behind a generic message.
func (a *App) respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		respondError(c, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, ErrSlotUnavailable):
		respondError(c, http.StatusBadRequest, "Booking slot is not available")
	case errors.Is(err, ErrAlreadyBooked):
		respondError(c, http.StatusBadRequest, "You have already booked this slot")
	case errors.Is(err, ErrNotFound):
		respondError(c, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, ErrVersionConflict):
		respondError(c, http.StatusConflict, "Schedule was modified by someone else, reload and retry")
	case errors.Is(err, ErrSlotExists):
		respondError(c, http.StatusConflict, "Slot already exists")
	default:
		a.Log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(ctxRequestID),
			"err", err,
		)
		respondError(c, http.StatusInternalServerError, "Internal Server Error")
	}
}

// validationMessage strips the sentinel suffix from a wrapped validation error.
func validationMessage(err error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+ErrValidation.Error())
	if msg == "" || msg == ErrValidation.Error() {
		return "Invalid request"
	}
	return msg
}

func notFoundMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "booking slot"):
		return "Booking slot not found"
	case strings.HasPrefix(msg, "booking"):
		return "Booking not found or already cancelled"
	case strings.HasPrefix(msg, "user"):
		return "User not found"
	}
	return "Not found"
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
