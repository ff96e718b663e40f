package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Source is the part of the store the workers read from.
type Source interface {
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	SubscriptionsForRoom(ctx context.Context, roomID int64) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool manages a pool of workers that tell subscribers a room is free
// again.
type WorkerPool struct {
	size    int
	jobs    chan int64
	src     Source
	webpush *webpush.Options
	sender  NotificationSender
	log     *logger.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, src Source, webpushOptions *webpush.Options, log *logger.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*16),
		src:     src,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     logger.OrNop(log),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", "worker", id)
	for {
		select {
		case roomID := <-wp.jobs:
			wp.sendNotificationsForRoom(ctx, roomID)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues a room-available notification. It never blocks: when the
// queue is full the job is dropped.
func (wp *WorkerPool) Dispatch(roomID int64) {
	select {
	case wp.jobs <- roomID:
	default:
		wp.log.Warn("notification queue full, dropping job", "room_id", roomID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForRoom(ctx context.Context, roomID int64) {
	subscriptions, err := wp.src.SubscriptionsForRoom(ctx, roomID)
	if err != nil {
		wp.log.Error("failed to load subscriptions", "room_id", roomID, "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	label := fmt.Sprintf("%d", roomID)
	if room, err := wp.src.GetRoom(ctx, roomID); err != nil {
		wp.log.Warn("failed to load room for notification", "room_id", roomID, "error", err)
	} else if room.Name != "" {
		label = room.Name
	}

	wp.log.Info("sending room notifications", "room_id", roomID, "count", len(subscriptions))
	message := fmt.Sprintf("Room %s is available again", label)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.src.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Warn("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
