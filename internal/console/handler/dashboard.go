package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/higher-guardian/internal/domain"
)

// SystemMonitor Описываем, что нам нужно от монитора
type SystemMonitor interface {
	LogActivity(record domain.ActivityRecord)
	Health() domain.SystemHealth
	RecentActivity(hours int) []domain.ActivityRecord
	AgentActivity(agentID string, hours int) []domain.ActivityRecord
	GenerateReport() domain.SystemReport
}

const defaultActivityHours = 24

type DashboardHandler struct {
	monitor SystemMonitor
}

func NewDashboardHandler(m SystemMonitor) *DashboardHandler {
	return &DashboardHandler{monitor: m}
}

// Report GET /v1/report — отчет за 24 часа.
func (h *DashboardHandler) Report(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.GenerateReport())
}

// Health GET /v1/health — счетчики с момента старта.
func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Health())
}

// Activities GET /v1/activities?hours=24&agent_id=...
func (h *DashboardHandler) Activities(w http.ResponseWriter, r *http.Request) {
	hours := defaultActivityHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "hours must be a non-negative integer", http.StatusBadRequest)
			return
		}
		hours = n
	}

	var records []domain.ActivityRecord
	if agentID := r.URL.Query().Get("agent_id"); agentID != "" {
		records = h.monitor.AgentActivity(agentID, hours)
	} else {
		records = h.monitor.RecentActivity(hours)
	}
	if records == nil {
		records = []domain.ActivityRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// LogActivity POST /v1/activities — внешняя активность (например, от соседних систем надзора).
func (h *DashboardHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	var record domain.ActivityRecord
	if !decode(w, r, &record) {
		return
	}
	if record.AgentID == "" || record.ActivityType == "" {
		http.Error(w, "ai_system_id and activity_type are required", http.StatusBadRequest)
		return
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	h.monitor.LogActivity(record)
	w.WriteHeader(http.StatusAccepted)
}
