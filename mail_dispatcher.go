package authcore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore/mail"
)

type mailJob struct {
	email   string
	purpose mail.Purpose
	code    string
}

// mailDispatcher delivers codes off the request path. Enqueue never blocks:
// when the buffer is full the message is dropped and counted.
type mailDispatcher struct {
	sender    mail.Sender
	timeout   time.Duration
	metrics   *Metrics
	ch        chan mailJob
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newMailDispatcher(cfg MailConfig, sender mail.Sender, metrics *Metrics) *mailDispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &mailDispatcher{
		sender:  sender,
		timeout: cfg.SendTimeout,
		metrics: metrics,
		ch:      make(chan mailJob, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *mailDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.ch:
			d.deliver(job)
		case <-d.done:
			for {
				select {
				case job := <-d.ch:
					d.deliver(job)
				default:
					return
				}
			}
		}
	}
}

func (d *mailDispatcher) deliver(job mailJob) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.sender.SendCode(ctx, job.email, job.purpose, job.code); err != nil {
		d.metrics.Inc(MetricMailFailed)
		logf("%s mail delivery failed: %v", job.purpose, err)
		return
	}
	d.metrics.Inc(MetricMailSent)
}

func (d *mailDispatcher) Enqueue(email string, purpose mail.Purpose, code string) {
	if d == nil || d.closed.Load() {
		return
	}

	select {
	case d.ch <- mailJob{email: email, purpose: purpose, code: code}:
	case <-d.done:
	default:
		d.dropped.Add(1)
		d.metrics.Inc(MetricMailDropped)
		logf("mail queue full, dropped %s message", purpose)
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (d *mailDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *mailDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
