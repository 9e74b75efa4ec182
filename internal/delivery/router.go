// internal/delivery/router.go
package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/common/metrics"
	"safety-pipeline/internal/models"
)

var ErrRouterStopped = errors.New("ROUTER_STOPPED")

// eventTypePanicMovement updates the live map only. It must never
// surface a notification regardless of priority.
const eventTypePanicMovement = "panic_movement"

// PushPayload is the raw wire shape handed to the router by the push
// channel. It is flatter than the dispatcher payload and may omit fields.
type PushPayload struct {
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	RelatedType string          `json:"relatedType"`
	RelatedID   string          `json:"relatedId"`
	Priority    models.Priority `json:"priority"`
	URL         string          `json:"url"`
	Tag         string          `json:"tag,omitempty"`
	Lat         *float64        `json:"lat,omitempty"`
	Lng         *float64        `json:"lng,omitempty"`
	EventType   string          `json:"eventType,omitempty"`
}

// Tray is the notification surface. Show with a repeated tag replaces
// the prior entry rather than stacking.
type Tray interface {
	Show(n models.ClientNotification) error
	Close(tag string) error
}

// NavigateMessage is posted to an already-open client window so the app
// navigates in place instead of spawning a new window.
type NavigateMessage struct {
	RelatedType string   `json:"relatedType"`
	RelatedID   string   `json:"relatedId"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	URL         string   `json:"url"`
}

// WindowClient abstracts the open-window lookup on the client side.
type WindowClient interface {
	HasOpenWindow() bool
	PostMessage(msg NavigateMessage) error
	Open(url string) error
}

// ClickEvent is a user tap on a displayed notification.
type ClickEvent struct {
	Tag  string
	Data models.ClientNotificationData
}

type msgKind int

const (
	msgPush msgKind = iota
	msgClick
)

type message struct {
	kind  msgKind
	raw   []byte
	click ClickEvent
}

// Router processes push and click messages one at a time on a single
// goroutine, FIFO. Stop drains in-flight messages but accepts no new ones.
type Router struct {
	tray    Tray
	windows WindowClient
	logger  logger.Logger

	inbox chan message
	done  chan struct{}

	mu      sync.Mutex
	stopped bool
}

func NewRouter(tray Tray, windows WindowClient, log logger.Logger) *Router {
	return &Router{
		tray:    tray,
		windows: windows,
		logger:  log.WithFields(map[string]interface{}{"component": "delivery"}),
		inbox:   make(chan message, 64),
		done:    make(chan struct{}),
	}
}

// Start launches the event loop. Call once.
func (r *Router) Start() {
	go r.loop()
}

// EnqueuePush queues a raw push payload for handling.
func (r *Router) EnqueuePush(raw []byte) error {
	return r.enqueue(message{kind: msgPush, raw: raw})
}

// EnqueueClick queues a user interaction for handling.
func (r *Router) EnqueueClick(click ClickEvent) error {
	return r.enqueue(message{kind: msgClick, click: click})
}

func (r *Router) enqueue(m message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrRouterStopped
	}
	r.inbox <- m
	return nil
}

// Stop rejects new messages, drains queued ones, and waits for the loop
// to exit.
func (r *Router) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.inbox)
	r.mu.Unlock()
	<-r.done
}

func (r *Router) loop() {
	defer close(r.done)
	for m := range r.inbox {
		switch m.kind {
		case msgPush:
			r.handlePush(m.raw)
		case msgClick:
			r.handleClick(m.click)
		}
	}
}

func (r *Router) handlePush(raw []byte) {
	var payload PushPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Malformed payloads drop without any user-visible effect.
		r.logger.Debug("dropping malformed push payload", map[string]interface{}{
			"error": err.Error(),
		})
		metrics.DeliveryMessages.WithLabelValues("dropped").Inc()
		return
	}

	if payload.EventType == eventTypePanicMovement {
		metrics.DeliveryMessages.WithLabelValues("suppressed").Inc()
		return
	}

	n := buildNotification(payload)
	if err := r.tray.Show(n); err != nil {
		r.logger.Warn("tray show failed", map[string]interface{}{
			"tag":   n.Tag,
			"error": err.Error(),
		})
		metrics.DeliveryMessages.WithLabelValues("failed").Inc()
		return
	}
	metrics.DeliveryMessages.WithLabelValues("displayed").Inc()
}

// handleClick closes the tray entry first, then navigates: in-place via
// a posted message when a window is open, otherwise a fresh deep link.
func (r *Router) handleClick(click ClickEvent) {
	if err := r.tray.Close(click.Tag); err != nil {
		r.logger.Debug("tray close failed", map[string]interface{}{
			"tag":   click.Tag,
			"error": err.Error(),
		})
	}

	if r.windows.HasOpenWindow() {
		msg := NavigateMessage{
			RelatedType: click.Data.RelatedType,
			RelatedID:   click.Data.RelatedID,
			Lat:         click.Data.Lat,
			Lng:         click.Data.Lng,
			URL:         DeepLink(click.Data),
		}
		if err := r.windows.PostMessage(msg); err == nil {
			return
		}
		// Fall through to a new window when the post fails.
	}

	if err := r.windows.Open(DeepLink(click.Data)); err != nil {
		r.logger.Warn("window open failed", map[string]interface{}{
			"tag":   click.Tag,
			"error": err.Error(),
		})
	}
}

func buildNotification(payload PushPayload) models.ClientNotification {
	tag := payload.Tag
	if tag == "" {
		tag = fmt.Sprintf("%s_%s", payload.RelatedType, payload.RelatedID)
	}

	n := models.ClientNotification{
		Title: payload.Title,
		Body:  payload.Body,
		Tag:   tag,
		Data: models.ClientNotificationData{
			URL:         payload.URL,
			RelatedType: payload.RelatedType,
			RelatedID:   payload.RelatedID,
			Priority:    payload.Priority,
			Lat:         payload.Lat,
			Lng:         payload.Lng,
		},
	}

	switch payload.Priority {
	case models.PriorityCritical:
		n.RequireInteraction = true
		n.Renotify = true
	case models.PriorityInfo:
		n.Silent = true
	}

	return n
}
