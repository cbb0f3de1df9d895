package app

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the public endpoints on r and the authenticated API
// under /api. reserveLimit guards booking creation and may be nil.
func (a *App) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc, reserveLimit gin.HandlerFunc) {
	r.GET("/health", a.HealthHandler)
	// OAuth2 callback (must be before auth middleware)
	r.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := r.Group("/api")
	api.Use(auth)
	admin := a.RequireAdmin()

	slots := api.Group("/booking_slots")
	{
		slots.GET("", a.ListSlotsHandler)
		slots.GET("/:id", a.GetSlotHandler)
		slots.PATCH("/:id", admin, a.UpdateSlotHandler)
	}

	bookings := api.Group("/user_bookings")
	{
		create := []gin.HandlerFunc{a.CreateBookingHandler}
		if reserveLimit != nil {
			create = append([]gin.HandlerFunc{reserveLimit}, create...)
		}
		bookings.POST("", create...)
		bookings.GET("", a.ListBookingsHandler)
		bookings.DELETE("/:id", a.CancelBookingHandler)
		bookings.POST("/:id/calendar", a.ExportBookingHandler)
	}

	users := api.Group("/users")
	{
		users.GET("", admin, a.ListUsersHandler)
		users.POST("", a.CreateUserHandler)
		users.GET("/:id", a.GetUserHandler)
		users.PATCH("/:id", admin, a.UpdateUserHandler)
	}

	adm := api.Group("/admin", admin)
	{
		adm.GET("/bookings", a.AdminBookingsHandler)
		adm.GET("/bookings/export", a.ExportBookingsHandler)
		adm.GET("/slot-bookings", a.SlotBookingsHandler)
	}

	api.GET("/workout_schedule", a.GetScheduleHandler)
	api.PUT("/workout_schedule", admin, a.SaveScheduleHandler)

	api.GET("/calendar/auth", a.GoogleAuthHandler)
}
