package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// GET /users
func (a *App) ListUsersHandler(c *gin.Context) {
	users, err := a.Store.ListUsers(c.Request.Context())
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, users)
}

type createUserReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	ClerkID string `json:"clerkId"`
	IsAdmin bool   `json:"isAdmin"`
}

// POST /users
// Registers the profile of a user known to the identity provider. Only
// service tokens may create administrators.
func (a *App) CreateUserHandler(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.ClerkID = strings.TrimSpace(req.ClerkID)
	if req.Name == "" || req.Email == "" || req.ClerkID == "" {
		respondError(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	if req.IsAdmin && !isPrivileged(c) {
		respondError(c, http.StatusForbidden, "admin access required")
		return
	}

	u := &User{Name: req.Name, Email: req.Email, ClerkID: req.ClerkID, IsAdmin: req.IsAdmin}
	if err := a.Store.CreateUser(c.Request.Context(), u); err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusCreated, u)
}

// GET /users/:id  (id or clerk id)
func (a *App) GetUserHandler(c *gin.Context) {
	ref := strings.TrimSpace(c.Param("id"))
	if ref == "" {
		respondError(c, http.StatusBadRequest, "No user ID provided")
		return
	}
	u, err := a.Store.GetUser(c.Request.Context(), ref)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, u)
}

// PATCH /users/:id
func (a *App) UpdateUserHandler(c *gin.Context) {
	ref := strings.TrimSpace(c.Param("id"))
	if ref == "" {
		respondError(c, http.StatusBadRequest, "No user ID provided")
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid body")
		return
	}
	fields, err := parseUserPatch(body)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	u, err := a.Store.UpdateUser(c.Request.Context(), ref, fields)
	if err != nil {
		a.respondErr(c, err)
		return
	}
	respondData(c, http.StatusOK, u)
}

// parseUserPatch turns a JSON object into column values, rejecting unknown
// columns and badly typed values. Subscription dates accept YYYY-MM-DD,
// RFC 3339 or null.
func parseUserPatch(body []byte) (map[string]any, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", ErrValidation)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", ErrValidation)
	}

	fields := make(map[string]any, len(raw))
	for col, val := range raw {
		if _, ok := userColumns[col]; !ok {
			return nil, fmt.Errorf("field %q cannot be updated: %w", col, ErrValidation)
		}
		switch col {
		case "name", "email":
			var s string
			if err := json.Unmarshal(val, &s); err != nil || strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("%s must be a non-empty string: %w", col, ErrValidation)
			}
			fields[col] = strings.TrimSpace(s)
		case "is_admin", "is_approved":
			var b bool
			if err := json.Unmarshal(val, &b); err != nil {
				return nil, fmt.Errorf("%s must be a boolean: %w", col, ErrValidation)
			}
			fields[col] = b
		case "subscription_start", "subscription_end":
			d, err := parseNullableDate(val)
			if err != nil {
				return nil, fmt.Errorf("%s must be a date or null: %w", col, ErrValidation)
			}
			fields[col] = d
		}
	}
	return fields, nil
}

func parseNullableDate(val json.RawMessage) (*time.Time, error) {
	if string(val) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, err
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &t, nil
}
