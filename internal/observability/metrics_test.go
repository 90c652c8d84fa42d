package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	CircuitOpened()
	CircuitClosed()
	ChannelCreated()
	ChannelCleared()
	RecordSearch("ring-1", true)
	RecordSearch("ring-1", false)
	RecordRead("ring-1", true)
	RecordWrite("ring-1", false)
	RecordMonitorEvents("ring-1", 3, 1)
}

func TestAdminRouterServesHealthAndMetrics(t *testing.T) {
	r := AdminRouter("ring-1", nil, zerolog.Nop())

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Fatalf("GET %s = %d, want 200", path, w.Code)
		}
	}
}
