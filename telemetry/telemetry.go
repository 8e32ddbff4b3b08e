package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the telemetry endpoint setup.
type Config struct {
	Port int `yaml:"port"` // /metrics port, 0 selects the default of 2112
}

// Measurements collects measurements for prometheus.
type Measurements struct {
	histograms map[string]prometheus.Observer
	gauges     map[string]prometheus.Gauge
	counters   map[string]prometheus.Counter
}

// NewMeasurements creates an empty Measurements registry without the /metrics
// server, for composition in processes that expose metrics elsewhere.
func NewMeasurements() *Measurements {
	return &Measurements{
		histograms: make(map[string]prometheus.Observer),
		gauges:     make(map[string]prometheus.Gauge),
		counters:   make(map[string]prometheus.Counter),
	}
}

// CreateUpdateObservableHistogram creates or updates an observable histogram.
func (m *Measurements) CreateUpdateObservableHistogram(name, description string) {
	if _, ok := m.histograms[name]; ok {
		return
	}
	m.histograms[name] = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: name,
		Help: description,
	})
}

// RecordHistogramTime records histogram time if an entity with the given name exists.
func (m *Measurements) RecordHistogramTime(name string, t time.Duration) bool {
	if v, ok := m.histograms[name]; ok {
		v.Observe(float64(t.Microseconds()))
		return true
	}
	return false
}

// RecordHistogramValue records a histogram value if an entity with the given name exists.
func (m *Measurements) RecordHistogramValue(name string, f float64) bool {
	if v, ok := m.histograms[name]; ok {
		v.Observe(f)
		return true
	}
	return false
}

// CreateUpdateObservableGauge creates or updates an observable gauge.
func (m *Measurements) CreateUpdateObservableGauge(name, description string) {
	if _, ok := m.gauges[name]; ok {
		return
	}
	m.gauges[name] = promauto.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: description,
	})
}

// AddToGauge adds the value to the gauge if an entity with the given name exists.
func (m *Measurements) AddToGauge(name string, f float64) bool {
	if v, ok := m.gauges[name]; ok {
		v.Add(f)
		return true
	}
	return false
}

// RemoveFromGauge subtracts the value from the gauge if an entity with the given name exists.
func (m *Measurements) RemoveFromGauge(name string, f float64) bool {
	if v, ok := m.gauges[name]; ok {
		v.Sub(f)
		return true
	}
	return false
}

// IncrementGauge increments the gauge if an entity with the given name exists.
func (m *Measurements) IncrementGauge(name string) bool {
	if v, ok := m.gauges[name]; ok {
		v.Inc()
		return true
	}
	return false
}

// DecrementGauge decrements the gauge if an entity with the given name exists.
func (m *Measurements) DecrementGauge(name string) bool {
	if v, ok := m.gauges[name]; ok {
		v.Dec()
		return true
	}
	return false
}

// SetGauge sets the gauge to the value if an entity with the given name exists.
func (m *Measurements) SetGauge(name string, f float64) bool {
	if v, ok := m.gauges[name]; ok {
		v.Set(f)
		return true
	}
	return false
}

// CreateUpdateObservableCounter creates or updates an observable counter.
func (m *Measurements) CreateUpdateObservableCounter(name, description string) {
	if _, ok := m.counters[name]; ok {
		return
	}
	m.counters[name] = promauto.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: description,
	})
}

// IncrementCounter increments the counter if an entity with the given name exists.
func (m *Measurements) IncrementCounter(name string) bool {
	if v, ok := m.counters[name]; ok {
		v.Inc()
		return true
	}
	return false
}

// Run starts collecting metrics and the server with the prometheus telemetry endpoint.
// Returns the Measurements structure if successfully started or cancels the context otherwise.
// The default port of 2112 is used if the port value is set to 0.
func Run(ctx context.Context, cancel context.CancelFunc, cfg Config) (*Measurements, error) {
	port := cfg.Port
	if port > 65535 || port < 0 {
		return nil, fmt.Errorf("port range allowed is from 1 to 65535, received %d", port)
	}
	go func() {
		if port == 0 {
			port = 2112
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

		go func() {
			if err := srv.ListenAndServe(); err != nil {
				cancel()
			}
		}()

		<-ctx.Done()

		srv.Shutdown(ctx)
	}()

	return NewMeasurements(), nil
}
