package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := New(1)
	result := make(chan sniffer.PageTask, 1)
	errCh := make(chan error, 1)

	go func() {
		task, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- task
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	task := sniffer.PageTask{URL: "http://www.downcc.com/font/list_200_1.html", PageIndex: 1}
	if err := q.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.PageIndex != 1 {
			t.Fatalf("expected page 1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return task")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qEnqueue := New(1)
	if err := qEnqueue.Enqueue(context.Background(), sniffer.PageTask{PageIndex: 1}); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := qEnqueue.Enqueue(ctx, sniffer.PageTask{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueCloseDrainsBufferedTasks(t *testing.T) {
	t.Parallel()

	q := New(2)
	if err := q.Enqueue(context.Background(), sniffer.PageTask{PageIndex: 7}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	q.Close()

	got, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue() after close error = %v", err)
	}
	if got.PageIndex != 7 {
		t.Fatalf("expected buffered task, got %+v", got)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, sniffer.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}
