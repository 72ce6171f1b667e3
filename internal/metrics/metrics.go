package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mediavault/internal/event"
)

var (
	usersRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mv_users_registered_total",
		Help: "Accounts created through the registration flow",
	})

	usersErasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mv_users_erased_total",
		Help: "Accounts hard-erased together with all their data",
	})

	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mv_uploads_total",
		Help: "File versions recorded in the ledger",
	})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mv_deletes_total",
		Help: "Soft deletes committed, by acting principal",
	}, []string{"actor"})

	purgedFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mv_purged_files_total",
		Help: "Files soft-deleted through owner-wide purges",
	})

	downloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mv_downloads_total",
		Help: "Successful download reference deliveries",
	})

	retentionArmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mv_retention_armed_total",
		Help: "Retention tasks armed or re-armed",
	})

	retentionCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mv_retention_cancelled_total",
		Help: "Retention tasks cancelled before firing",
	})

	retentionFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mv_retention_fired_total",
		Help: "Retention tasks that reached the expiry path",
	})

	retentionDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mv_retention_dropped_total",
		Help: "Retention tasks dropped after exhausting retries",
	})
)

// Collector turns lifecycle events into Prometheus counters. It is a plain
// bus subscriber, so a slow scrape can never slow down the engine.
type Collector struct {
	bus event.Bus
}

func NewCollector(bus event.Bus) *Collector {
	return &Collector{bus: bus}
}

func (c *Collector) Run(ctx context.Context) {
	events, unsubscribe := c.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-events:
			if !open {
				return
			}
			c.observe(e)
		}
	}
}

func (c *Collector) observe(e event.Event) {
	switch e.Type {
	case event.TypeUserRegistered:
		usersRegisteredTotal.Inc()
	case event.TypeUserErased:
		usersErasedTotal.Inc()
	case event.TypeFileUploaded:
		uploadsTotal.Inc()
	case event.TypeFileDeleted:
		deletesTotal.WithLabelValues(e.Actor).Inc()
	case event.TypeFilePurged:
		if n, ok := e.Payload.(int); ok {
			purgedFilesTotal.Add(float64(n))
		}
	case event.TypeFileDownloaded:
		downloadsTotal.Inc()
	case event.TypeRetentionArmed:
		retentionArmedTotal.Inc()
	case event.TypeRetentionCancelled:
		retentionCancelledTotal.Inc()
	case event.TypeRetentionFired:
		retentionFiredTotal.Inc()
	case event.TypeRetentionDropped:
		retentionDroppedTotal.Inc()
	}
}
