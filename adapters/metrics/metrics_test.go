package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artpar/immitate/adapters/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func label(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestNew(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
	if m.RequestsTotal == nil || m.RequestDuration == nil || m.RequestsInFlight == nil {
		t.Error("request metrics not initialized")
	}
	if m.StoreOperations == nil || m.Entities == nil {
		t.Error("store metrics not initialized")
	}
	if m.ConfigReloads == nil || m.ConfigReloadErrors == nil || m.ConfigLastReload == nil {
		t.Error("config metrics not initialized")
	}
}

func TestRequestsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RequestsTotal.WithLabelValues("GET", "/users", "2xx").Inc()
	m.RequestsTotal.WithLabelValues("POST", "/users", "4xx").Add(5)

	f := gather(t, reg, "immitate_requests_total")
	if f == nil {
		t.Fatal("immitate_requests_total metric not found")
	}
	if len(f.GetMetric()) != 2 {
		t.Errorf("expected 2 metric series, got %d", len(f.GetMetric()))
	}
}

func TestStoreOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.StoreOperations.WithLabelValues("User", "created").Inc()
	m.StoreOperations.WithLabelValues("User", "deleted").Add(3)

	f := gather(t, reg, "immitate_store_operations_total")
	if f == nil {
		t.Fatal("immitate_store_operations_total metric not found")
	}
	var deleted float64
	for _, metric := range f.GetMetric() {
		if label(metric, "op") == "deleted" {
			deleted = metric.GetCounter().GetValue()
		}
	}
	if deleted != 3 {
		t.Errorf("deleted = %v, want 3", deleted)
	}
}

func TestSetEntities(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.SetEntities(map[string]int{"User": 2, "Post": 5})
	m.SetEntities(map[string]int{"User": 3})

	f := gather(t, reg, "immitate_entities")
	if f == nil {
		t.Fatal("immitate_entities metric not found")
	}
	if len(f.GetMetric()) != 1 {
		t.Fatalf("expected 1 series after reset, got %d", len(f.GetMetric()))
	}
	if got := f.GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Errorf("User entities = %v, want 3", got)
	}
}

func TestConfigReloads(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ConfigReloads.Inc()
	m.ConfigReloadErrors.Inc()
	m.ConfigLastReload.Set(1718452800)

	for _, name := range []string{
		"immitate_config_reloads_total",
		"immitate_config_reload_errors_total",
		"immitate_config_last_reload_timestamp",
	} {
		if gather(t, reg, name) == nil {
			t.Errorf("%s metric not found", name)
		}
	}
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewWithRegistry(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	metrics.NewWithRegistry(reg)
}

func TestRoutePattern(t *testing.T) {
	var got string
	record := func(w http.ResponseWriter, r *http.Request) {
		got = metrics.RoutePattern(r)
	}

	sub := chi.NewRouter()
	sub.Get("/users/{id}", record)

	r := chi.NewRouter()
	r.Get("/health", record)
	r.Mount("/", sub)

	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/users/e1", "/users/{id}"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got = ""
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
			if got != tt.want {
				t.Errorf("RoutePattern = %q, want %q", got, tt.want)
			}
		})
	}

	plain := httptest.NewRequest(http.MethodGet, "/x", nil)
	if p := metrics.RoutePattern(plain); p != "unmatched" {
		t.Errorf("RoutePattern without chi = %q, want unmatched", p)
	}
}
