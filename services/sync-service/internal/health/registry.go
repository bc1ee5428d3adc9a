// Package health tracks per-job health indicators and serves them over
// the service's health endpoint.
package health

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Reporter receives human-readable unhealthy reasons keyed by job name.
type Reporter interface {
	ReportUnhealthy(job, reason string)
}

// Registry is the in-process health indicator. A job's reason is
// cleared when the job starts a new run, so health self-clears on the
// next successful run.
type Registry struct {
	mu      sync.Mutex
	reasons map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{reasons: make(map[string]string)}
}

// ReportUnhealthy records the latest unhealthy reason for a job.
func (r *Registry) ReportUnhealthy(job, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons[job] = reason
}

// Clear removes a job's recorded reason; called when the job begins a
// fresh run.
func (r *Registry) Clear(job string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reasons, job)
}

// Snapshot returns a copy of the current unhealthy reasons.
func (r *Registry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.reasons))
	for job, reason := range r.reasons {
		out[job] = reason
	}
	return out
}

// Handler serves the health endpoint: 200 while every job is healthy,
// 503 with the reasons otherwise.
func (r *Registry) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reasons := r.Snapshot()
		if len(reasons) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"reasons": reasons,
		})
	}
}
