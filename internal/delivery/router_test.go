// internal/delivery/router_test.go
package delivery

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeTray struct {
	mu     sync.Mutex
	shown  []models.ClientNotification
	closed []string
	calls  []string
}

func (f *fakeTray) Show(n models.ClientNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, n)
	f.calls = append(f.calls, "show")
	return nil
}

func (f *fakeTray) Close(tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, tag)
	f.calls = append(f.calls, "close")
	return nil
}

type fakeWindows struct {
	mu      sync.Mutex
	open    bool
	postErr error
	posted  []NavigateMessage
	opened  []string
	calls   []string
}

func (f *fakeWindows) HasOpenWindow() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeWindows) PostMessage(msg NavigateMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, msg)
	f.calls = append(f.calls, "post")
	return nil
}

func (f *fakeWindows) Open(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)
	f.calls = append(f.calls, "open")
	return nil
}

func runRouter(t *testing.T, tray *fakeTray, windows *fakeWindows, run func(*Router)) {
	r := NewRouter(tray, windows, logger.NewTestLogger(t))
	r.Start()
	run(r)
	r.Stop()
}

func pushJSON(t *testing.T, payload PushPayload) []byte {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func floatPtr(v float64) *float64 { return &v }

// ==========================
// Push Handling Tests
// ==========================

func TestRouter_DisplaysPush(t *testing.T) {
	tray := &fakeTray{}
	runRouter(t, tray, &fakeWindows{}, func(r *Router) {
		require.NoError(t, r.EnqueuePush(pushJSON(t, PushPayload{
			Title:       "Incident nearby",
			Body:        "details",
			RelatedType: "incident",
			RelatedID:   "incident-1",
			Priority:    models.PriorityImportant,
		})))
	})

	require.Len(t, tray.shown, 1)
	assert.Equal(t, "incident_incident-1", tray.shown[0].Tag)
	assert.False(t, tray.shown[0].Silent)
	assert.False(t, tray.shown[0].RequireInteraction)
}

func TestRouter_MalformedPayloadDroppedSilently(t *testing.T) {
	tray := &fakeTray{}
	runRouter(t, tray, &fakeWindows{}, func(r *Router) {
		require.NoError(t, r.EnqueuePush([]byte("{not json")))
	})

	assert.Empty(t, tray.calls, "malformed payload must not touch the tray")
}

func TestRouter_PanicMovementNeverDisplayed(t *testing.T) {
	tray := &fakeTray{}
	windows := &fakeWindows{}
	runRouter(t, tray, windows, func(r *Router) {
		require.NoError(t, r.EnqueuePush(pushJSON(t, PushPayload{
			EventType:   "panic_movement",
			RelatedType: "panic",
			RelatedID:   "x",
			Priority:    models.PriorityCritical,
		})))
	})

	assert.Empty(t, tray.calls)
	assert.Empty(t, windows.calls)
}

func TestRouter_ExplicitTagWins(t *testing.T) {
	tray := &fakeTray{}
	runRouter(t, tray, &fakeWindows{}, func(r *Router) {
		require.NoError(t, r.EnqueuePush(pushJSON(t, PushPayload{
			Title:       "amber update",
			RelatedType: "amber",
			RelatedID:   "a-1",
			Tag:         "amber_custom",
			Priority:    models.PriorityImportant,
		})))
	})

	require.Len(t, tray.shown, 1)
	assert.Equal(t, "amber_custom", tray.shown[0].Tag)
}

func TestRouter_DeliveryAttributesFromPriority(t *testing.T) {
	tests := []struct {
		priority           models.Priority
		requireInteraction bool
		renotify           bool
		silent             bool
	}{
		{models.PriorityCritical, true, true, false},
		{models.PriorityImportant, false, false, false},
		{models.PriorityInfo, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			tray := &fakeTray{}
			runRouter(t, tray, &fakeWindows{}, func(r *Router) {
				require.NoError(t, r.EnqueuePush(pushJSON(t, PushPayload{
					Title:       "t",
					RelatedType: "incident",
					RelatedID:   "i-1",
					Priority:    tt.priority,
				})))
			})

			require.Len(t, tray.shown, 1)
			assert.Equal(t, tt.requireInteraction, tray.shown[0].RequireInteraction)
			assert.Equal(t, tt.renotify, tray.shown[0].Renotify)
			assert.Equal(t, tt.silent, tray.shown[0].Silent)
		})
	}
}

// ==========================
// Click Handling Tests
// ==========================

func TestRouter_ClickClosesBeforeNavigating(t *testing.T) {
	tray := &fakeTray{}
	windows := &fakeWindows{open: true}
	runRouter(t, tray, windows, func(r *Router) {
		require.NoError(t, r.EnqueueClick(ClickEvent{
			Tag: "incident_i-1",
			Data: models.ClientNotificationData{
				RelatedType: "incident",
				RelatedID:   "i-1",
			},
		}))
	})

	require.Equal(t, []string{"close"}, tray.calls)
	assert.Equal(t, []string{"incident_i-1"}, tray.closed)
	require.Len(t, windows.posted, 1)
	assert.Empty(t, windows.opened, "open window gets a posted message, not a new window")
}

func TestRouter_ClickWithoutWindowOpensDeepLink(t *testing.T) {
	tray := &fakeTray{}
	windows := &fakeWindows{open: false}
	runRouter(t, tray, windows, func(r *Router) {
		require.NoError(t, r.EnqueueClick(ClickEvent{
			Tag: "panic_p-1",
			Data: models.ClientNotificationData{
				RelatedType: "panic",
				RelatedID:   "p-1",
				Lat:         floatPtr(-33.9),
				Lng:         floatPtr(18.4),
			},
		}))
	})

	require.Len(t, windows.opened, 1)
	assert.Contains(t, windows.opened[0], "/map?panic=p-1")
	assert.Contains(t, windows.opened[0], "zoom=16")
	assert.Empty(t, windows.posted)
}

func TestRouter_PostFailureFallsBackToOpen(t *testing.T) {
	tray := &fakeTray{}
	windows := &fakeWindows{open: true, postErr: errors.New("window gone")}
	runRouter(t, tray, windows, func(r *Router) {
		require.NoError(t, r.EnqueueClick(ClickEvent{
			Tag:  "amber_a-1",
			Data: models.ClientNotificationData{RelatedType: "amber", RelatedID: "a-1"},
		}))
	})

	require.Len(t, windows.opened, 1)
	assert.Equal(t, "/amber-chat/a-1", windows.opened[0])
}

// ==========================
// Lifecycle Tests
// ==========================

func TestRouter_EnqueueAfterStopRejected(t *testing.T) {
	r := NewRouter(&fakeTray{}, &fakeWindows{}, logger.NewTestLogger(t))
	r.Start()
	r.Stop()

	err := r.EnqueuePush([]byte(`{}`))
	assert.ErrorIs(t, err, ErrRouterStopped)

	err = r.EnqueueClick(ClickEvent{Tag: "x"})
	assert.ErrorIs(t, err, ErrRouterStopped)
}

func TestRouter_StopDrainsQueuedMessages(t *testing.T) {
	tray := &fakeTray{}
	r := NewRouter(tray, &fakeWindows{}, logger.NewTestLogger(t))
	for i := 0; i < 10; i++ {
		require.NoError(t, r.EnqueuePush(pushJSON(t, PushPayload{
			Title:       "t",
			RelatedType: "incident",
			RelatedID:   "i-1",
			Priority:    models.PriorityInfo,
		})))
	}
	r.Start()
	r.Stop()

	assert.Len(t, tray.shown, 10)
}

// ==========================
// Deep Link Tests
// ==========================

func TestDeepLink_RoutingTable(t *testing.T) {
	tests := []struct {
		name string
		data models.ClientNotificationData
		want string
	}{
		{
			name: "panic with coordinates",
			data: models.ClientNotificationData{RelatedType: "panic", RelatedID: "p-1", Lat: floatPtr(-33.5), Lng: floatPtr(18.25)},
			want: "/map?panic=p-1&lat=-33.500000&lng=18.250000&zoom=16",
		},
		{
			name: "incident without coordinates",
			data: models.ClientNotificationData{RelatedType: "incident", RelatedID: "i-9"},
			want: "/map?incident=i-9&zoom=15",
		},
		{
			name: "amber chat",
			data: models.ClientNotificationData{RelatedType: "amber", RelatedID: "a-3"},
			want: "/amber-chat/a-3",
		},
		{
			name: "look after me",
			data: models.ClientNotificationData{RelatedType: "lookAfterMe", RelatedID: "s-1"},
			want: "/look-after-me",
		},
		{
			name: "unknown falls back to payload url",
			data: models.ClientNotificationData{RelatedType: "chat", RelatedID: "c-1", URL: "/chat/c-1"},
			want: "/chat/c-1",
		},
		{
			name: "unknown without url goes to alerts",
			data: models.ClientNotificationData{RelatedType: "chat", RelatedID: "c-1"},
			want: "/alerts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeepLink(tt.data))
		})
	}
}
