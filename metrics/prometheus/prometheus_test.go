package prometheus

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDelivery(t *testing.T) {
	messagesPublishedTotal.Reset()
	messagesDroppedTotal.Reset()

	RecordDelivery("scores_update", 3, 1)
	RecordDelivery("scores_update", 2, 0)
	RecordDelivery("controls", 1, 0)

	published := testutil.ToFloat64(messagesPublishedTotal.WithLabelValues("scores_update"))
	dropped := testutil.ToFloat64(messagesDroppedTotal.WithLabelValues("scores_update"))
	controls := testutil.ToFloat64(messagesPublishedTotal.WithLabelValues("controls"))

	if published != 5 {
		t.Errorf("Expected 5 published on scores_update, got %f", published)
	}
	if dropped != 1 {
		t.Errorf("Expected 1 dropped on scores_update, got %f", dropped)
	}
	if controls != 1 {
		t.Errorf("Expected 1 published on controls, got %f", controls)
	}
}

func TestRecordDeliveryZeroValues(t *testing.T) {
	messagesPublishedTotal.Reset()
	messagesDroppedTotal.Reset()

	// Zero counts must not create samples.
	RecordDelivery("scores_update", 0, 0)

	published := testutil.ToFloat64(messagesPublishedTotal.WithLabelValues("scores_update"))
	dropped := testutil.ToFloat64(messagesDroppedTotal.WithLabelValues("scores_update"))

	if published != 0 {
		t.Errorf("Expected 0 published for zero value, got %f", published)
	}
	if dropped != 0 {
		t.Errorf("Expected 0 dropped for zero value, got %f", dropped)
	}
}

func TestRecordSchedulerStartEnd(t *testing.T) {
	schedulersActive.Set(0)
	schedulerDuration.Reset()

	RecordSchedulerStart()
	active := testutil.ToFloat64(schedulersActive)
	if active != 1 {
		t.Errorf("Expected 1 active scheduler, got %f", active)
	}

	RecordSchedulerStart()
	active = testutil.ToFloat64(schedulersActive)
	if active != 2 {
		t.Errorf("Expected 2 active schedulers, got %f", active)
	}

	RecordSchedulerEnd(StatusSuccess, 120.0)
	active = testutil.ToFloat64(schedulersActive)
	if active != 1 {
		t.Errorf("Expected 1 active scheduler after end, got %f", active)
	}

	RecordSchedulerEnd(StatusError, 5.0)
	active = testutil.ToFloat64(schedulersActive)
	if active != 0 {
		t.Errorf("Expected 0 active schedulers after end, got %f", active)
	}

	count := testutil.CollectAndCount(schedulerDuration)
	if count == 0 {
		t.Error("Expected scheduler durations to be observed")
	}
}

func TestRecordScoreUpdates(t *testing.T) {
	before := testutil.ToFloat64(scoreUpdatesTotal)

	RecordScoreUpdates(10)
	RecordScoreUpdates(5)
	RecordScoreUpdates(0)

	total := testutil.ToFloat64(scoreUpdatesTotal) - before
	if total != 15 {
		t.Errorf("Expected 15 score updates, got %f", total)
	}
}

func TestRecordControlEvent(t *testing.T) {
	controlEventsTotal.Reset()

	RecordControlEvent("start")
	RecordControlEvent("pause")
	RecordControlEvent("pause")

	startCount := testutil.ToFloat64(controlEventsTotal.WithLabelValues("start"))
	pauseCount := testutil.ToFloat64(controlEventsTotal.WithLabelValues("pause"))

	if startCount != 1 {
		t.Errorf("Expected 1 start event, got %f", startCount)
	}
	if pauseCount != 2 {
		t.Errorf("Expected 2 pause events, got %f", pauseCount)
	}
}

func TestRecordRelayStartStop(t *testing.T) {
	relayListenersActive.Set(0)

	RecordRelayStart()
	RecordRelayStart()
	RecordRelayStop()

	active := testutil.ToFloat64(relayListenersActive)
	if active != 1 {
		t.Errorf("Expected 1 active relay listener, got %f", active)
	}
}

func TestRecordSessionConnectDisconnect(t *testing.T) {
	sessionsActive.Set(0)

	RecordSessionConnect()
	RecordSessionConnect()
	RecordSessionDisconnect()

	active := testutil.ToFloat64(sessionsActive)
	if active != 1 {
		t.Errorf("Expected 1 active session, got %f", active)
	}
}

func TestRecordFrameEmitted(t *testing.T) {
	framesEmittedTotal.Reset()

	RecordFrameEmitted("game.score.update")
	RecordFrameEmitted("game.score.update")
	RecordFrameEmitted("game.error")

	scores := testutil.ToFloat64(framesEmittedTotal.WithLabelValues("game.score.update"))
	errCount := testutil.ToFloat64(framesEmittedTotal.WithLabelValues("game.error"))

	if scores != 2 {
		t.Errorf("Expected 2 score frames, got %f", scores)
	}
	if errCount != 1 {
		t.Errorf("Expected 1 error frame, got %f", errCount)
	}
}

func TestRecordDispatch(t *testing.T) {
	dispatchDuration.Reset()
	dispatchesTotal.Reset()

	RecordDispatch("game.join", StatusSuccess, 0.01)
	RecordDispatch("game.join", StatusSuccess, 0.02)
	RecordDispatch("game.control.pause", StatusError, 0.005)

	successCount := testutil.ToFloat64(dispatchesTotal.WithLabelValues("game.join", StatusSuccess))
	errorCount := testutil.ToFloat64(dispatchesTotal.WithLabelValues("game.control.pause", StatusError))

	if successCount != 2 {
		t.Errorf("Expected 2 successful dispatches, got %f", successCount)
	}
	if errorCount != 1 {
		t.Errorf("Expected 1 failed dispatch, got %f", errorCount)
	}

	count := testutil.CollectAndCount(dispatchDuration)
	if count == 0 {
		t.Error("Expected dispatch durations to be observed")
	}
}

func TestNewExporter(t *testing.T) {
	exporter := NewExporter("127.0.0.1:0")
	if exporter == nil {
		t.Fatal("Expected non-nil exporter")
	}
	if exporter.Registry() == nil {
		t.Fatal("Expected a default registry")
	}

	// The default registry holds the runtime metrics plus the Go and process
	// collectors, so a gather yields families before anything is recorded.
	families, err := exporter.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("Expected preloaded metric families in the default registry")
	}
}

func TestNewExporterWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry("127.0.0.1:0", reg)

	if exporter.Registry() != reg {
		t.Error("Expected the provided registry to be used")
	}

	// Caller-supplied registries come through untouched.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) != 0 {
		t.Errorf("Expected an empty registry, got %d families", len(families))
	}
}

func TestExporterHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "court_occupancy",
		Help: "Occupancy gauge for handler scrape tests.",
	})
	reg.MustRegister(gauge)
	gauge.Set(42)

	exporter := NewExporterWithRegistry("127.0.0.1:0", reg)

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := rec.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "court_occupancy 42") {
		t.Errorf("Expected scrape output to contain the gauge, got:\n%s", body)
	}
}

func TestExporterRegister(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_reloads_total",
		Help: "Counter for registration tests.",
	})

	if err := exporter.Register(counter); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	if err := exporter.Register(counter); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestExporterMustRegister(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_backlog",
		Help: "Gauge for MustRegister tests.",
	})
	exporter.MustRegister(gauge)

	gauge.Set(7)
	if got := testutil.ToFloat64(gauge); got != 7 {
		t.Errorf("Expected registered gauge to read 7, got %f", got)
	}
}

func TestExporterStartShutdown(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())

	errCh := make(chan error, 1)
	go func() { errCh <- exporter.Start() }()

	// Let the listener come up before shutting it down.
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exporter.Shutdown(ctx); err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Expected ErrServerClosed from Start, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Start did not return after Shutdown")
	}
}

func TestExporterDoubleStart(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())

	go func() { _ = exporter.Start() }()
	time.Sleep(100 * time.Millisecond)

	if err := exporter.Start(); err != nil {
		t.Errorf("Expected the second Start to be a no-op, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = exporter.Shutdown(ctx)
}

func TestExporterShutdownWithoutStart(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	if err := exporter.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected nil shutting down a never-started exporter, got %v", err)
	}
}
