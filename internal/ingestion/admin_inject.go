package ingestion

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"rangevault/internal/observability"
	"rangevault/internal/oracle"
)

// AdminInjector pushes price readings into the cached feeds directly,
// bypassing NATS. Meant for operator intervention when a feed is down,
// not for routine updates.
type AdminInjector struct {
	feeds   map[string]*oracle.CachedFeed
	metrics *observability.Metrics
}

func NewAdminInjector(feeds map[string]*oracle.CachedFeed, metrics *observability.Metrics) *AdminInjector {
	return &AdminInjector{feeds: feeds, metrics: metrics}
}

// InjectPrice stamps the reading with the current time so a manual
// override is always fresh at the moment of injection.
func (a *AdminInjector) InjectPrice(asset string, answer *uint256.Int) error {
	if answer == nil || answer.IsZero() {
		return fmt.Errorf("price must be positive")
	}
	feed, ok := a.feeds[asset]
	if !ok {
		return fmt.Errorf("no feed registered for asset %s", asset)
	}

	feed.Update(answer, time.Now())
	if a.metrics != nil {
		a.metrics.OraclePriceUpdates.WithLabelValues(asset).Inc()
	}
	return nil
}
