package app

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultBookingsLimit = 50
	maxBookingsLimit     = 500
)

// GET /health
func (a *App) HealthHandler(c *gin.Context) {
	if err := a.Store.Ping(c.Request.Context()); err != nil {
		a.Log.Error("health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /booking_slots?date=YYYY-MM-DD&offered=true
func (a *App) ListSlotsHandler(c *gin.Context) {
	date := c.Query("date")
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			respondError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
	}
	offered := false
	if v := c.Query("offered"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid offered flag")
			return
		}
		offered = b
	}

	slots, err := a.Store.ListSlots(c.Request.Context(), SlotFilter{Date: date})
	if err != nil {
		a.respondErr(c, err)
		return
	}
	if offered {
		slots = OfferedSlots(slots)
	}
	respondData(c, http.StatusOK, slots)
}

// GET /booking_slots/:id
func (a *App) GetSlotHandler(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "No valid booking slot ID provided")
		return
	}
	slot, err := a.Store.GetSlot(c.Request.Context(), id)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, slot)
}

type updateSlotReq struct {
	Capacity int `json:"capacity" binding:"required,gt=0"`
}

// PATCH /booking_slots/:id
// Only the capacity is editable; booked is owned by reservations.
func (a *App) UpdateSlotHandler(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "No valid booking slot ID provided")
		return
	}
	var req updateSlotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "capacity must be a positive integer")
		return
	}
	slot, err := a.Store.UpdateSlotCapacity(c.Request.Context(), id, req.Capacity)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, slot)
}

type createBookingReq struct {
	UserID        string `json:"userId" binding:"required"`
	BookingSlotID int64  `json:"bookingSlotId" binding:"required,gt=0"`
}

// POST /user_bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "User ID and Booking Slot ID are required")
		return
	}
	caller, err := a.actingUser(c)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	if !mayActFor(caller, req.UserID) {
		respondError(c, http.StatusForbidden, "cannot book for another user")
		return
	}

	booking, err := a.Reserve(c.Request.Context(), req.UserID, req.BookingSlotID)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusCreated, booking)
}

// GET /user_bookings?userId=...&bookingSlotId=...&limit=50
func (a *App) ListBookingsHandler(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "User ID is required")
		return
	}
	caller, err := a.actingUser(c)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	if !mayActFor(caller, userID) {
		respondError(c, http.StatusForbidden, "cannot list another user's bookings")
		return
	}

	var slotID int64
	if v := c.Query("bookingSlotId"); v != "" {
		id, ok := parseID(v)
		if !ok {
			respondError(c, http.StatusBadRequest, "invalid bookingSlotId")
			return
		}
		slotID = id
	}

	limit := defaultBookingsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxBookingsLimit)
	}

	bookings, err := a.Store.ListUserBookings(c.Request.Context(), userID, slotID, limit)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, bookings)
}

// DELETE /user_bookings/:id
func (a *App) CancelBookingHandler(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Booking ID is required")
		return
	}
	if err := a.authorizeBooking(c, id); err != nil {
		a.respondErr(c, err)
		return
	}

	slot, err := a.Cancel(c.Request.Context(), id)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled successfully",
		"data":    slot,
	})
}

// authorizeBooking hides bookings the caller does not own behind a not found.
func (a *App) authorizeBooking(c *gin.Context, bookingID int64) error {
	caller, err := a.actingUser(c)
	if err != nil {
		return err
	}
	if caller == nil || caller.IsAdmin {
		return nil
	}
	b, err := a.Store.GetUserBooking(c.Request.Context(), bookingID)
	if err != nil {
		return err
	}
	if !mayTouchBooking(caller, b.UserID) {
		return fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	return nil
}
