package app

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GET /admin/bookings?date=YYYY-MM-DD or ?slotId=N
func (a *App) AdminBookingsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	date := c.Query("date")
	slotParam := c.Query("slotId")

	var (
		rows []AdminBookingRow
		err  error
	)
	switch {
	case date != "":
		if _, perr := time.Parse(dateLayout, date); perr != nil {
			respondError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		rows, err = a.Store.AdminBookingsByDate(ctx, date)
	case slotParam != "":
		id, ok := parseID(slotParam)
		if !ok {
			respondError(c, http.StatusBadRequest, "invalid slotId")
			return
		}
		rows, err = a.Store.AdminBookingsBySlot(ctx, id)
	default:
		respondError(c, http.StatusBadRequest, "date or slotId is required")
		return
	}
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, rows)
}

// GET /admin/slot-bookings?slotId=N
func (a *App) SlotBookingsHandler(c *gin.Context) {
	id, ok := parseID(c.Query("slotId"))
	if !ok {
		respondError(c, http.StatusBadRequest, "slotId is required")
		return
	}
	bookings, err := a.Store.SlotBookings(c.Request.Context(), id)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"bookings": bookings})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GET /admin/bookings/export?date=YYYY-MM-DD
func (a *App) ExportBookingsHandler(c *gin.Context) {
	date := c.Query("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		respondError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	rows, err := a.Store.AdminBookingsByDate(c.Request.Context(), date)
	if err != nil {
		a.respondErr(c, err)
		return
	}

	buf := &bytes.Buffer{}
	if err := WriteBookingsXLSX(buf, date, rows); err != nil {
		a.respondErr(c, fmt.Errorf("xlsx export %s: %w", date, err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="bookings-%s.xlsx"`, date))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
