// internal/pipeline/fanout/resolver_test.go
package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeIndex struct {
	watchers []models.GeoWatcher
	err      error

	lastRadiusM float64
	lastExclude string
	calls       int
}

func (f *fakeIndex) QueryNear(_ context.Context, lat, lng, radiusMeters float64, excludeUserID string) ([]models.GeoWatcher, error) {
	f.calls++
	f.lastRadiusM = radiusMeters
	f.lastExclude = excludeUserID
	return f.watchers, f.err
}

func watcher(userID string, lat, lng float64, ghost bool) models.GeoWatcher {
	return models.GeoWatcher{UserID: userID, Lat: lat, Lng: lng, GhostMode: ghost}
}

func geoEvent(priority models.Priority, radiusKm float64) *models.NotificationEvent {
	return &models.NotificationEvent{
		EventType:   "incident_reported",
		RelatedType: "incident",
		RelatedID:   "incident-9",
		TriggeredBy: "reporter-1",
		Priority:    priority,
		Location:    &models.LatLng{Lat: -33.92, Lng: 18.42},
		RadiusKm:    radiusKm,
	}
}

func newResolver(idx *fakeIndex) *Resolver {
	return NewResolver(idx, 5, logger.NewNoOpLogger())
}

// ==========================
// Core Functionality Tests
// ==========================

func TestResolveTargets_ExplicitListIsAuthoritative(t *testing.T) {
	idx := &fakeIndex{watchers: []models.GeoWatcher{watcher("geo-user", -33.92, 18.42, false)}}
	resolver := newResolver(idx)

	event := geoEvent(models.PriorityImportant, 5)
	event.TargetUserIDs = []string{"user-a", "user-b", "user-a"}

	targets, err := resolver.ResolveTargets(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, targets)
	assert.Zero(t, idx.calls, "explicit targets must not trigger a geo lookup")
}

func TestResolveTargets_TriggeringUserNeverIncluded(t *testing.T) {
	t.Run("explicit list", func(t *testing.T) {
		resolver := newResolver(&fakeIndex{})
		event := geoEvent(models.PriorityImportant, 5)
		event.TargetUserIDs = []string{"reporter-1", "user-b"}

		targets, err := resolver.ResolveTargets(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, []string{"user-b"}, targets)
	})

	t.Run("geo result", func(t *testing.T) {
		idx := &fakeIndex{watchers: []models.GeoWatcher{
			watcher("reporter-1", -33.92, 18.42, false),
			watcher("user-b", -33.92, 18.42, false),
		}}
		resolver := newResolver(idx)

		targets, err := resolver.ResolveTargets(context.Background(), geoEvent(models.PriorityImportant, 5))
		require.NoError(t, err)
		assert.Equal(t, []string{"user-b"}, targets)
		assert.Equal(t, "reporter-1", idx.lastExclude)
	})
}

func TestResolveTargets_GhostMode(t *testing.T) {
	idx := &fakeIndex{watchers: []models.GeoWatcher{
		watcher("visible", -33.92, 18.42, false),
		watcher("hidden", -33.92, 18.42, true),
	}}
	resolver := newResolver(idx)

	t.Run("excluded below critical", func(t *testing.T) {
		targets, err := resolver.ResolveTargets(context.Background(), geoEvent(models.PriorityImportant, 5))
		require.NoError(t, err)
		assert.Equal(t, []string{"visible"}, targets)
	})

	t.Run("critical overrides privacy", func(t *testing.T) {
		targets, err := resolver.ResolveTargets(context.Background(), geoEvent(models.PriorityCritical, 5))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"visible", "hidden"}, targets)
	})
}

func TestResolveTargets_RadiusBoundaryInclusive(t *testing.T) {
	// 0.02 deg lat is roughly 2.2 km from the event center; 0.05 is ~5.6 km.
	idx := &fakeIndex{watchers: []models.GeoWatcher{
		watcher("inside", -33.90, 18.42, false),
		watcher("outside", -33.87, 18.42, false),
	}}
	resolver := newResolver(idx)

	targets, err := resolver.ResolveTargets(context.Background(), geoEvent(models.PriorityImportant, 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"inside"}, targets)
	assert.InDelta(t, 3000, idx.lastRadiusM, 0.001)
}

func TestResolveTargets_DefaultRadiusApplied(t *testing.T) {
	idx := &fakeIndex{}
	resolver := newResolver(idx)

	_, err := resolver.ResolveTargets(context.Background(), geoEvent(models.PriorityImportant, 0))
	require.NoError(t, err)
	assert.InDelta(t, 5000, idx.lastRadiusM, 0.001)
}

func TestResolveTargets_NoLocationNoTargets(t *testing.T) {
	idx := &fakeIndex{}
	resolver := newResolver(idx)

	event := geoEvent(models.PriorityImportant, 5)
	event.Location = nil

	targets, err := resolver.ResolveTargets(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, targets)
	assert.Zero(t, idx.calls)
}

func TestResolveTargets_EmptyGeoResultIsValid(t *testing.T) {
	resolver := newResolver(&fakeIndex{})

	targets, err := resolver.ResolveTargets(context.Background(), geoEvent(models.PriorityImportant, 5))
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestResolveTargets_GeoErrorSurfaces(t *testing.T) {
	idx := &fakeIndex{err: errors.New("index unreachable")}
	resolver := newResolver(idx)

	_, err := resolver.ResolveTargets(context.Background(), geoEvent(models.PriorityImportant, 5))
	assert.Error(t, err)
}
