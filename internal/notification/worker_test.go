package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"

	"meeting-resource-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type mockSource struct {
	GetRoomFunc              func(ctx context.Context, id int64) (*model.Room, error)
	SubscriptionsForRoomFunc func(ctx context.Context, roomID int64) ([]model.PushSubscription, error)
	DeleteSubscriptionFunc   func(ctx context.Context, endpoint string) error
}

func (m *mockSource) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	return m.GetRoomFunc(ctx, id)
}

func (m *mockSource) SubscriptionsForRoom(ctx context.Context, roomID int64) ([]model.PushSubscription, error) {
	return m.SubscriptionsForRoomFunc(ctx, roomID)
}

func (m *mockSource) DeleteSubscription(ctx context.Context, endpoint string) error {
	return m.DeleteSubscriptionFunc(ctx, endpoint)
}

func created() *http.Response {
	return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, &mockSource{}, &webpush.Options{}, nil)

	wp.Dispatch(123)

	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(123), job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchNeverBlocks(t *testing.T) {
	wp := NewWorkerPool(1, &mockSource{}, &webpush.Options{}, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(wp.jobs)+5; i++ {
			wp.Dispatch(int64(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Len(t, wp.jobs, cap(wp.jobs))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	subscriptions := map[int64][]model.PushSubscription{
		101: {{Endpoint: "https://example.com/push", P256DH: "test_p256dh", Auth: "test_auth"}},
		102: {{Endpoint: "https://example.com/expired", P256DH: "p", Auth: "a"}},
		103: {{Endpoint: "https://example.com/fallback", P256DH: "p", Auth: "a"}},
	}
	var mu sync.Mutex
	var deleted []string

	src := &mockSource{
		SubscriptionsForRoomFunc: func(ctx context.Context, roomID int64) ([]model.PushSubscription, error) {
			return subscriptions[roomID], nil
		},
		GetRoomFunc: func(ctx context.Context, id int64) (*model.Room, error) {
			if id == 103 {
				return nil, fmt.Errorf("room not found")
			}
			return &model.Room{ID: id, Name: fmt.Sprintf("Lotus %d", id)}, nil
		},
		DeleteSubscriptionFunc: func(ctx context.Context, endpoint string) error {
			mu.Lock()
			defer mu.Unlock()
			deleted = append(deleted, endpoint)
			return nil
		},
	}
	wp := NewWorkerPool(1, src, &webpush.Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "Room Lotus 101 is available again", string(payload))
				wg.Done()
				return created(), nil
			},
		}

		wp.Dispatch(101)
		wg.Wait()
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusGone, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
			},
		}

		wp.Dispatch(102)
		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(deleted) == 1 && deleted[0] == "https://example.com/expired"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("falls back to room ID when lookup fails", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/fallback", sub.Endpoint)
				assert.Equal(t, "Room 103 is available again", string(payload))
				wg.Done()
				return created(), nil
			},
		}

		wp.Dispatch(103)
		wg.Wait()
	})
}
