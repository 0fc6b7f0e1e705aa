package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric groups the collectors shared by the tracker and the sink.
// All Add/Set methods are no-ops until RegisterMetrics has been called,
// so components can hold a nil or unregistered *Metric in tests.
type Metric struct {
	mu         sync.Mutex
	registered bool

	sentDataBytesHistogram *prometheus.HistogramVec
	procTimeHistogram      prometheus.Histogram
	rttTimeHistogram       *prometheus.HistogramVec

	procTime       prometheus.Gauge
	rttTimes       *prometheus.GaugeVec
	frameCount     *prometheus.CounterVec
	targetLost     prometheus.Counter
	selections     *prometheus.CounterVec
	windowIoU      prometheus.Gauge
	droppedEvents  prometheus.Counter
	receivedEvents *prometheus.CounterVec
}

// RegisterMetrics creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when reg is nil). Nil bucket slices fall
// back to prometheus.DefBuckets.
func (m *Metric) RegisterMetrics(reg prometheus.Registerer, sentDataBuckets, procTimeBuckets, rttTimeBuckets []float64) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if sentDataBuckets == nil {
		sentDataBuckets = prometheus.DefBuckets
	}
	if procTimeBuckets == nil {
		procTimeBuckets = prometheus.DefBuckets
	}
	if rttTimeBuckets == nil {
		rttTimeBuckets = prometheus.DefBuckets
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sentDataBytesHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sent_data_bytes_histogram",
			Help:    "Histogram of sent data bytes.",
			Buckets: sentDataBuckets,
		},
		[]string{"service"},
	)
	m.procTimeHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "processing_time_ms_histogram",
			Help:    "Histogram of per-frame processing times.",
			Buckets: procTimeBuckets,
		},
	)
	m.rttTimeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rtt_times_ms_histogram",
			Help:    "Histogram of round-trip times.",
			Buckets: rttTimeBuckets,
		},
		[]string{"service"},
	)
	m.procTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "processing_time_ms",
			Help: "Gauge of processing times.",
		},
	)
	m.rttTimes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtt_times_ms",
			Help: "Gauge of round-trip times for different services.",
		},
		[]string{"service"},
	)
	m.frameCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frames_total",
			Help: "Number of frames read, by tracking status.",
		},
		[]string{"status"},
	)
	m.targetLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "target_lost_total",
			Help: "Number of times the tracked target was lost.",
		},
	)
	m.selections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roi_selections_total",
			Help: "Number of completed ROI selections, by result.",
		},
		[]string{"result"},
	)
	m.windowIoU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "track_window_iou",
			Help: "IoU between the tracking windows of two consecutive frames.",
		},
	)
	m.droppedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "track_events_dropped_total",
			Help: "Number of track events dropped before being published.",
		},
	)
	m.receivedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "track_events_received_total",
			Help: "Number of track events received by the sink, by state.",
		},
		[]string{"state"},
	)

	reg.MustRegister(
		m.sentDataBytesHistogram,
		m.procTimeHistogram,
		m.rttTimeHistogram,
		m.procTime,
		m.rttTimes,
		m.frameCount,
		m.targetLost,
		m.selections,
		m.windowIoU,
		m.droppedEvents,
		m.receivedEvents,
	)
	m.registered = true
}

func (m *Metric) AddSentDataBytes(s string, bytes float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	m.sentDataBytesHistogram.WithLabelValues(s).Observe(bytes)
}

func (m *Metric) AddProcessingTime(time float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	m.procTimeHistogram.Observe(time)
	m.procTime.Set(time)
}

func (m *Metric) AddRttTime(s string, time float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	m.rttTimeHistogram.WithLabelValues(s).Observe(time)
	m.rttTimes.WithLabelValues(s).Set(time)
}

func (m *Metric) AddFrameCount(status string, n float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	m.frameCount.WithLabelValues(status).Add(n)
}

func (m *Metric) AddTargetLost() {
	if !m.lock() {
		return
	}
	defer m.unlock()
	m.targetLost.Inc()
}

func (m *Metric) AddSelection(result string) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	m.selections.WithLabelValues(result).Inc()
}

func (m *Metric) SetWindowIoU(iou float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	m.windowIoU.Set(iou)
}

func (m *Metric) AddDroppedEvent() {
	if !m.lock() {
		return
	}
	defer m.unlock()
	m.droppedEvents.Inc()
}

func (m *Metric) AddReceivedEvent(state string) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	m.receivedEvents.WithLabelValues(state).Inc()
}

// lock reports false, without holding the mutex, when there is nothing to record to.
func (m *Metric) lock() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	if !m.registered {
		m.mu.Unlock()
		return false
	}
	return true
}

func (m *Metric) unlock() {
	m.mu.Unlock()
}
