package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCalendarConfig holds the OAuth2 client used to push bookings to a
// member's Google Calendar.
type GoogleCalendarConfig struct {
	Config *oauth2.Config
	// Endpoint overrides the Calendar API base URL. Empty means Google.
	Endpoint string
}

// NewGoogleCalendarConfig returns nil when any credential is missing, which
// disables the calendar routes.
func NewGoogleCalendarConfig(clientID, clientSecret, redirectURL string) *GoogleCalendarConfig {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &GoogleCalendarConfig{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
	}
}

// GET /calendar/auth
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.Calendar == nil {
		respondError(c, http.StatusServiceUnavailable, "Google Calendar not configured")
		return
	}
	state := uuid.NewString()
	url := a.Calendar.Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	respondData(c, http.StatusOK, gin.H{
		"auth_url": url,
		"state":    state,
	})
}

// GET /oauth2callback
// The token is handed back to the client, which sends it with each export in
// the X-Google-Token header.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Calendar == nil {
		respondError(c, http.StatusServiceUnavailable, "Google Calendar not configured")
		return
	}
	code := c.Query("code")
	if code == "" {
		respondError(c, http.StatusBadRequest, "authorization code required")
		return
	}

	token, err := a.Calendar.Config.Exchange(c.Request.Context(), code)
	if err != nil {
		a.Log.Warn("google token exchange failed", "err", err)
		respondError(c, http.StatusBadRequest, "failed to exchange code for token")
		return
	}
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{
		"state": c.Query("state"),
		"token": string(tokenJSON),
	})
}

// POST /user_bookings/:id/calendar
func (a *App) ExportBookingHandler(c *gin.Context) {
	if a.Calendar == nil {
		respondError(c, http.StatusServiceUnavailable, "Google Calendar not configured")
		return
	}
	id, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Booking ID is required")
		return
	}
	tokenStr := c.GetHeader("X-Google-Token")
	if tokenStr == "" {
		respondError(c, http.StatusBadRequest, "Google token required in X-Google-Token header")
		return
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenStr), &token); err != nil || token.AccessToken == "" {
		respondError(c, http.StatusBadRequest, "invalid token format")
		return
	}

	ctx := c.Request.Context()
	booking, err := a.Store.GetUserBooking(ctx, id)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	caller, err := a.actingUser(c)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	if !mayTouchBooking(caller, booking.UserID) {
		a.respondErr(c, fmt.Errorf("booking %d: %w", id, ErrNotFound))
		return
	}

	event, err := BookingEvent(booking, a.Location, a.SlotLength)
	if err != nil {
		a.respondErr(c, err)
		return
	}

	opts := []option.ClientOption{option.WithHTTPClient(a.Calendar.Config.Client(ctx, &token))}
	if a.Calendar.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.Calendar.Endpoint))
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		a.respondErr(c, fmt.Errorf("calendar service: %w", err))
		return
	}
	created, err := srv.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		a.Log.Warn("calendar insert failed", "booking_id", id, "err", err)
		respondError(c, http.StatusBadGateway, "failed to create calendar event")
		return
	}
	respondData(c, http.StatusCreated, gin.H{
		"event_id": created.Id,
		"link":     created.HtmlLink,
	})
}

// BookingEvent builds the calendar entry for a booking. The slot's wall clock
// time is interpreted in loc.
func BookingEvent(b *UserBookingDetails, loc *time.Location, length time.Duration) (*calendar.Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(dateLayout+" 15:04", b.Date+" "+b.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("slot %s %s: %w", b.Date, b.Time, ErrValidation)
	}
	end := start.Add(length)
	return &calendar.Event{
		Summary:     "Gym class",
		Description: fmt.Sprintf("Booking #%d", b.ID),
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()},
	}, nil
}
