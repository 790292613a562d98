package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/mergesched/pkg/types"
)

// HealthStatus is the body of /health and /ready
type HealthStatus struct {
	Status     string                `json:"status"` // "healthy", "unhealthy", "ready", "not_ready"
	Timestamp  time.Time             `json:"timestamp"`
	Components map[string]string     `json:"components,omitempty"`
	Passes     map[string]PassStatus `json:"passes,omitempty"`
	Message    string                `json:"message,omitempty"`
	Version    string                `json:"version,omitempty"`
	Uptime     string                `json:"uptime,omitempty"`
}

// PassStatus is the outcome of the most recent scheduler pass of one class
type PassStatus struct {
	Running    bool            `json:"running"`
	Result     types.RunResult `json:"result,omitempty"`
	Discovered int             `json:"discovered"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
}

// stale reports whether the pass is idle and finished longer than maxAge ago
func (p PassStatus) stale(now time.Time, maxAge time.Duration) bool {
	if p.Running || maxAge <= 0 {
		return false
	}
	return now.Sub(p.FinishedAt) > maxAge
}

// ComponentHealth tracks the health of a single component
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker holds component health and the last pass per merge class
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	passes     map[types.Class]PassStatus
	critical   []string
	maxPassAge time.Duration
	startTime  time.Time
	version    string
	now        func() time.Time
}

var healthChecker = newHealthChecker()

func newHealthChecker() *HealthChecker {
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		passes:     make(map[types.Class]PassStatus),
		critical:   []string{"probe"},
		startTime:  time.Now(),
		now:        time.Now,
	}
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// SetCriticalComponents sets the components readiness waits for
func SetCriticalComponents(names ...string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.critical = names
}

// SetMaxPassAge makes readiness fail when a class has been idle longer than
// d since its last pass finished. Zero disables the check.
func SetMaxPassAge(d time.Duration) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.maxPassAge = d
}

// RegisterComponent records the health of a named component
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	healthChecker.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: healthChecker.now(),
	}
}

// UpdateComponent is RegisterComponent for components already known
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// PassStarted marks a scheduler pass of class as in progress
func PassStarted(class types.Class, discovered int) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	healthChecker.passes[class] = PassStatus{
		Running:    true,
		Discovered: discovered,
		StartedAt:  healthChecker.now(),
	}
}

// PassFinished records how the running pass of class ended
func PassFinished(class types.Class, result types.RunResult) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	pass := healthChecker.passes[class]
	pass.Running = false
	pass.Result = result
	pass.FinishedAt = healthChecker.now()
	healthChecker.passes[class] = pass
}

func (h *HealthChecker) passSnapshot() map[string]PassStatus {
	if len(h.passes) == 0 {
		return nil
	}
	out := make(map[string]PassStatus, len(h.passes))
	for class, pass := range h.passes {
		out[string(class)] = pass
	}
	return out
}

func sortedClasses(passes map[types.Class]PassStatus) []types.Class {
	classes := make([]types.Class, 0, len(passes))
	for class := range passes {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// GetHealth reports unhealthy when a component is down or the last pass of
// a class was interrupted. A preempted master pass is expected and healthy.
func GetHealth() HealthStatus {
	h := healthChecker
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	components := make(map[string]string)

	for name, comp := range h.components {
		if !comp.Healthy {
			status = "unhealthy"
			components[name] = "unhealthy: " + comp.Message
		} else {
			components[name] = "healthy"
		}
	}

	message := ""
	for _, class := range sortedClasses(h.passes) {
		if h.passes[class].Result == types.RunInterrupted {
			status = "unhealthy"
			message = string(class) + " pass interrupted"
		}
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  h.now(),
		Components: components,
		Passes:     h.passSnapshot(),
		Message:    message,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
	}
}

// GetReadiness is ready once every critical component is healthy and no
// class has gone without a pass for longer than the max pass age
func GetReadiness() HealthStatus {
	h := healthChecker
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "ready"
	message := ""
	components := make(map[string]string)

	for _, name := range h.critical {
		comp, exists := h.components[name]
		switch {
		case !exists:
			status = "not_ready"
			message = "waiting for " + name + " initialization"
			components[name] = "not registered"
		case !comp.Healthy:
			status = "not_ready"
			message = "waiting for " + name
			components[name] = "not ready: " + comp.Message
		default:
			components[name] = "ready"
		}
	}

	now := h.now()
	for _, class := range sortedClasses(h.passes) {
		if h.passes[class].stale(now, h.maxPassAge) {
			status = "not_ready"
			message = "no " + string(class) + " pass since " + h.passes[class].FinishedAt.Format(time.RFC3339)
		}
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  now,
		Components: components,
		Passes:     h.passSnapshot(),
		Message:    message,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
	}
}

func writeStatus(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler serves /health
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		code := http.StatusOK
		if health.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, health)
	}
}

// ReadyHandler serves /ready
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		code := http.StatusOK
		if readiness.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, readiness)
	}
}

// LivenessHandler serves /live; it answers 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).String(),
		})
	}
}
