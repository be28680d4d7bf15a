package services

import (
	"context"
	"log"
	"sync"
	"time"

	"fitDietAPI/internal/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// DeviceTokenSource resolves the devices a user registered.
type DeviceTokenSource interface {
	DeviceTokens(ctx context.Context, userID string) ([]string, error)
}

// Notifier accepts messages for asynchronous delivery. Notify never blocks.
type Notifier interface {
	Notify(msg notification.Message)
}

type noopNotifier struct{}

func (noopNotifier) Notify(notification.Message) {}

// NotificationDispatcher delivers pushes through a fixed worker pool. It is
// fed after a transaction commits, so a failed push never affects state.
type NotificationDispatcher struct {
	tokens       DeviceTokenSource
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan notification.Message
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewNotificationDispatcher(tokens DeviceTokenSource, workers, queueSize int) *NotificationDispatcher {
	d := &NotificationDispatcher{
		tokens:   tokens,
		workers:  workers,
		jobQueue: make(chan notification.Message, queueSize),
		stopChan: make(chan struct{}),
	}
	d.startWorkers()
	return d
}

// Allow injecting the real FCM provider from main.go
func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.pushProvider = provider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.jobQueue:
			d.processJob(msg)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(msg notification.Message) {
	if d.pushProvider == nil {
		log.Printf("Skipping push %s for user %s: no provider", msg.Type, msg.UserID)
		pushesSent.WithLabelValues("skipped").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := d.tokens.DeviceTokens(ctx, msg.UserID)
	if err != nil {
		log.Printf("Failed to load device tokens for user %s: %v", msg.UserID, err)
		pushesSent.WithLabelValues("failed").Inc()
		return
	}
	if len(tokens) == 0 {
		pushesSent.WithLabelValues("skipped").Inc()
		return
	}

	if err := d.pushProvider.SendPush(ctx, tokens, msg.Title, msg.Body, msg.Data); err != nil {
		log.Printf("Push failed for user %s: %v", msg.UserID, err)
		pushesSent.WithLabelValues("failed").Inc()
		return
	}
	pushesSent.WithLabelValues("sent").Inc()
}

// Notify queues msg. When the queue is full the message is dropped.
func (d *NotificationDispatcher) Notify(msg notification.Message) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	select {
	case d.jobQueue <- msg:
	default:
		log.Printf("Failed to queue %s notification for user %s: queue full", msg.Type, msg.UserID)
		pushesSent.WithLabelValues("dropped").Inc()
	}
}

// Stop the dispatcher gracefully. Queued messages that no worker picked up
// are discarded.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Println("Stopping notification dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Notification dispatcher stopped")
	})
}
