// Package prometheus provides Prometheus metrics exporters for the scorecast runtime.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scorecast"

// Label values shared by the status-labeled metrics.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// messagesPublishedTotal is a counter of messages delivered to subscriber queues.
	messagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total number of messages delivered to subscriber queues",
		},
		[]string{"channel"},
	)

	// messagesDroppedTotal is a counter of messages dropped on full subscriber queues.
	messagesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of messages dropped because a subscriber queue was full",
		},
		[]string{"channel"},
	)

	// schedulersActive is a gauge of currently running game schedulers.
	schedulersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedulers_active",
			Help:      "Number of currently running game schedulers",
		},
	)

	// schedulerDuration is a histogram of total scheduler run duration.
	schedulerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_duration_seconds",
			Help:      "Histogram of total scheduler run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"}, // StatusSuccess or StatusError
	)

	// scoreUpdatesTotal is a counter of score update events emitted by schedulers.
	scoreUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_updates_total",
			Help:      "Total number of score update events emitted by schedulers",
		},
	)

	// controlEventsTotal is a counter of control events applied by schedulers.
	controlEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_events_total",
			Help:      "Total number of control events applied by schedulers",
		},
		[]string{"action"}, // action: start, pause, resume, speed, autoplay
	)

	// relayListenersActive is a gauge of active broker relay listeners.
	relayListenersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_listeners_active",
			Help:      "Number of active broker relay listeners",
		},
	)

	// sessionsActive is a gauge of currently connected client sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently connected client sessions",
		},
	)

	// framesEmittedTotal is a counter of frames placed on session send queues.
	framesEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_emitted_total",
			Help:      "Total number of frames placed on session send queues",
		},
		[]string{"event_type"},
	)

	// dispatchDuration is a histogram of inbound event dispatch duration.
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of inbound event dispatch in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"event_type"},
	)

	// dispatchesTotal is a counter of inbound events dispatched.
	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Total number of inbound events dispatched",
		},
		[]string{"event_type", "status"}, // StatusSuccess or StatusError
	)

	// allMetrics feeds the default registry built by NewExporter.
	allMetrics = []prometheus.Collector{
		messagesPublishedTotal,
		messagesDroppedTotal,
		schedulersActive,
		schedulerDuration,
		scoreUpdatesTotal,
		controlEventsTotal,
		relayListenersActive,
		sessionsActive,
		framesEmittedTotal,
		dispatchDuration,
		dispatchesTotal,
	}
)

// RecordDelivery records the outcome of a broker publish on one channel.
func RecordDelivery(channel string, delivered, dropped int) {
	if delivered > 0 {
		messagesPublishedTotal.WithLabelValues(channel).Add(float64(delivered))
	}
	if dropped > 0 {
		messagesDroppedTotal.WithLabelValues(channel).Add(float64(dropped))
	}
}

// RecordSchedulerStart records a scheduler start.
func RecordSchedulerStart() {
	schedulersActive.Inc()
}

// RecordSchedulerEnd records a scheduler completion.
func RecordSchedulerEnd(status string, durationSeconds float64) {
	schedulersActive.Dec()
	schedulerDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordScoreUpdates records score update events emitted by a scheduler.
func RecordScoreUpdates(count int) {
	if count > 0 {
		scoreUpdatesTotal.Add(float64(count))
	}
}

// RecordControlEvent records a control event applied by a scheduler.
func RecordControlEvent(action string) {
	controlEventsTotal.WithLabelValues(action).Inc()
}

// RecordRelayStart records a relay listener start.
func RecordRelayStart() {
	relayListenersActive.Inc()
}

// RecordRelayStop records a relay listener stop.
func RecordRelayStop() {
	relayListenersActive.Dec()
}

// RecordSessionConnect records a client session connect.
func RecordSessionConnect() {
	sessionsActive.Inc()
}

// RecordSessionDisconnect records a client session disconnect.
func RecordSessionDisconnect() {
	sessionsActive.Dec()
}

// RecordFrameEmitted records one frame placed on a session send queue.
func RecordFrameEmitted(eventType string) {
	framesEmittedTotal.WithLabelValues(eventType).Inc()
}

// RecordDispatch records a dispatched inbound event.
func RecordDispatch(eventType, status string, durationSeconds float64) {
	dispatchDuration.WithLabelValues(eventType).Observe(durationSeconds)
	dispatchesTotal.WithLabelValues(eventType, status).Inc()
}
