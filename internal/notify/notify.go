// Package notify delivers new-project notices to the operations team.
// Delivery runs in the background and never fails the request that
// created the project.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"project-tracker-api/internal/models"
)

// Sender delivers one notice. It may block until delivery completes.
type Sender interface {
	Send(ctx context.Context, p models.Project) error
	Name() string
}

// Dispatcher hands projects to a Sender on background goroutines.
type Dispatcher struct {
	sender  Sender
	log     logrus.FieldLogger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	failures func()
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(ds *Dispatcher) { ds.timeout = d }
}

// OnFailure registers a callback run after each failed delivery.
func OnFailure(fn func()) DispatcherOption {
	return func(ds *Dispatcher) { ds.failures = fn }
}

func NewDispatcher(s Sender, log logrus.FieldLogger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{sender: s, log: log, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify schedules delivery of p and returns immediately. After Close it
// drops the notice.
func (d *Dispatcher) Notify(p models.Project) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.WithField("project_id", p.ID).Warn("notifier closed, dropping project notice")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, p); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"project_id": p.ID,
				"sender":     d.sender.Name(),
			}).Error("project notification failed")
			if d.failures != nil {
				d.failures()
			}
			return
		}
		d.log.WithFields(logrus.Fields{
			"project_id": p.ID,
			"sender":     d.sender.Name(),
		}).Debug("project notification sent")
	}()
}

// Close stops accepting notices and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// LogSender writes the notice to the log instead of delivering it.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) Name() string { return "log" }

func (s LogSender) Send(_ context.Context, p models.Project) error {
	s.Log.WithFields(logrus.Fields{
		"project_id":   p.ID,
		"project_name": p.ProjectName,
		"project_type": p.ProjectType,
		"end_client":   p.EndClientName,
	}).Info("new project")
	return nil
}
