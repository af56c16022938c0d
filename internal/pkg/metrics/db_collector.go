package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordPoolStats publishes a snapshot of the pgx pool.
func RecordPoolStats(stat *pgxpool.Stat) {
	DBPoolConnections.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBPoolConnections.WithLabelValues("constructing").Set(float64(stat.ConstructingConns()))
	DBPoolConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))
	DBPoolAcquireWaitSeconds.Set(stat.AcquireDuration().Seconds())
}
