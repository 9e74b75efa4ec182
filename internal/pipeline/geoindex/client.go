// internal/pipeline/geoindex/client.go
package geoindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/models"
)

var (
	ErrGeoQueryFailed = errors.New("GEO_QUERY_FAILED")
)

// Positions older than this are not fan-out candidates; a watcher whose
// app stopped reporting an hour ago is not "near" anything.
const locationFreshness = 15 * time.Minute

// Index finds all known current watcher locations within a radius.
type Index interface {
	QueryNear(ctx context.Context, lat, lng, radiusMeters float64, excludeUserID string) ([]models.GeoWatcher, error)
}

// Client queries the watcher-locations Elasticsearch index.
type Client struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewClient(es *elasticsearch.Client, index string, log logger.Logger) *Client {
	return &Client{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "geoindex"}),
	}
}

type searchHit struct {
	Source struct {
		UserID    string    `json:"userId"`
		Location  geoPoint  `json:"location"`
		GhostMode bool      `json:"ghostMode"`
		UpdatedAt time.Time `json:"updatedAt"`
	} `json:"_source"`
}

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// QueryNear returns fresh watcher positions within radiusMeters of the
// point, excluding the given user. Ghost-mode watchers are included in
// the result; policy around them belongs to the fan-out resolver.
func (c *Client) QueryNear(ctx context.Context, lat, lng, radiusMeters float64, excludeUserID string) ([]models.GeoWatcher, error) {
	query := map[string]interface{}{
		"size": 10000,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"geo_distance": map[string]interface{}{
							"distance": fmt.Sprintf("%.0fm", radiusMeters),
							"location": map[string]float64{"lat": lat, "lon": lng},
						},
					},
					map[string]interface{}{
						"range": map[string]interface{}{
							"updatedAt": map[string]string{
								"gte": fmt.Sprintf("now-%ds", int(locationFreshness.Seconds())),
							},
						},
					},
				},
				"must_not": []interface{}{
					map[string]interface{}{
						"term": map[string]string{"userId": excludeUserID},
					},
				},
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeoQueryFailed, err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(strings.NewReader(string(body))),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeoQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrGeoQueryFailed, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGeoQueryFailed, err)
	}

	watchers := make([]models.GeoWatcher, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		watchers = append(watchers, models.GeoWatcher{
			UserID:    hit.Source.UserID,
			Lat:       hit.Source.Location.Lat,
			Lng:       hit.Source.Location.Lon,
			GhostMode: hit.Source.GhostMode,
			UpdatedAt: hit.Source.UpdatedAt,
		})
	}

	c.logger.Debug("geo query completed", map[string]interface{}{
		"radiusMeters": radiusMeters,
		"hits":         len(watchers),
	})

	return watchers, nil
}
