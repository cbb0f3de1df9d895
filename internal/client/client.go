// Package client is a small Go client for the booking API. Slot reads are
// served from a short-lived cache so pollers do not hammer the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sethvargo/go-retry"

	"gym-booking-service/internal/app"
)

const (
	DefaultCacheSize    = 256
	DefaultCacheTTL     = 5 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type Client struct {
	base  string
	token string
	http  *http.Client
	slots *expirable.LRU[int64, app.BookingSlot]
}

// newSlotCache bounds the cache to size entries, each living at most ttl.
func newSlotCache(size int, ttl time.Duration) *expirable.LRU[int64, app.BookingSlot] {
	if size < 1 {
		size = 1
	}
	return expirable.NewLRU[int64, app.BookingSlot](size, nil, ttl)
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) { c.slots = newSlotCache(size, ttl) }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
		slots: newSlotCache(DefaultCacheSize, DefaultCacheTTL),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Slots lists slots, optionally for one date, and refreshes the cache with them.
func (c *Client) Slots(ctx context.Context, date string, offered bool) ([]app.BookingSlot, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if offered {
		q.Set("offered", "true")
	}
	var out []app.BookingSlot
	if err := c.getIdempotent(ctx, "/api/booking_slots", q, &out); err != nil {
		return nil, err
	}
	for _, s := range out {
		c.slots.Add(s.ID, s)
	}
	return out, nil
}

// Slot returns one slot, from cache when fresh.
func (c *Client) Slot(ctx context.Context, id int64) (app.BookingSlot, error) {
	if s, ok := c.slots.Get(id); ok {
		return s, nil
	}
	var s app.BookingSlot
	if err := c.getIdempotent(ctx, "/api/booking_slots/"+strconv.FormatInt(id, 10), nil, &s); err != nil {
		return app.BookingSlot{}, err
	}
	c.slots.Add(id, s)
	return s, nil
}

func (c *Client) Reserve(ctx context.Context, userID string, slotID int64) (app.UserBooking, error) {
	body := map[string]any{"userId": userID, "bookingSlotId": slotID}
	var b app.UserBooking
	err := c.do(ctx, http.MethodPost, "/api/user_bookings", nil, body, &b)
	c.slots.Remove(slotID)
	return b, err
}

// Cancel deletes a booking and caches the slot state the server returns.
func (c *Client) Cancel(ctx context.Context, bookingID int64) (app.BookingSlot, error) {
	var s app.BookingSlot
	if err := c.do(ctx, http.MethodDelete, "/api/user_bookings/"+strconv.FormatInt(bookingID, 10), nil, nil, &s); err != nil {
		return app.BookingSlot{}, err
	}
	c.slots.Add(s.ID, s)
	return s, nil
}

// Watch lists the slots of date every interval and hands them to fn until ctx
// ends or fn returns an error. Failed polls are reported through onErr when
// set and do not stop the watch.
func (c *Client) Watch(ctx context.Context, date string, interval time.Duration, fn func([]app.BookingSlot) error, onErr func(error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		slots, err := c.Slots(ctx, date, false)
		switch {
		case err == nil:
			if err := fn(slots); err != nil {
				return err
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case onErr != nil:
			onErr(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// getIdempotent retries GETs on transport errors and 5xx answers.
func (c *Client) getIdempotent(ctx context.Context, path string, q url.Values, out any) error {
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, q, nil, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return err
		}
		if err != nil && ctx.Err() == nil {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	decErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decErr != nil && !errors.Is(decErr, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, decErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
