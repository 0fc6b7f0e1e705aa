package sink

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/etesami/camshift-tracker/api"
	mt "github.com/etesami/camshift-tracker/pkg/metric"
	"github.com/etesami/camshift-tracker/pkg/utils"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

const metricService = "sink"

// Publisher forwards track events to the sink held in connRef. Publish never
// blocks: events are dropped when the queue is full or no connection is up.
type Publisher struct {
	connRef *atomic.Pointer[grpc.ClientConn]
	metric  *mt.Metric
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan api.TrackEvent
	wg     sync.WaitGroup
}

func NewPublisher(connRef *atomic.Pointer[grpc.ClientConn], m *mt.Metric, queueSize int, timeout time.Duration) *Publisher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	p := &Publisher{
		connRef: connRef,
		metric:  m,
		timeout: timeout,
		queue:   make(chan api.TrackEvent, queueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Publisher) Publish(ev api.TrackEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- ev:
	default:
		p.metric.AddDroppedEvent()
		log.Printf("Sink queue full, dropped event for frame [%d]", ev.FrameId)
	}
}

// Close stops accepting events and waits until the queued ones are sent.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for ev := range p.queue {
		if err := p.send(ev); err != nil {
			log.Printf("Error sending event for frame [%d]: %v", ev.FrameId, err)
		}
	}
}

func (p *Publisher) send(ev api.TrackEvent) error {
	conn := p.connRef.Load()
	if conn == nil {
		p.metric.AddDroppedEvent()
		return nil
	}

	sentTime := time.Now()
	msg, err := EncodeEvent(ev, sentTime)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	ack, err := NewClient(conn).Publish(ctx, msg)
	if err != nil {
		p.metric.AddDroppedEvent()
		return err
	}
	ackRecTime := time.Now()
	p.metric.AddSentDataBytes(metricService, float64(proto.Size(msg)))

	recTime, ackSentTime := AckTimes(ack)
	rtt, err := utils.CalculateRtt(sentTime, recTime, ackSentTime, ackRecTime)
	if err != nil {
		return err
	}
	p.metric.AddRttTime(metricService, rtt)
	return nil
}
