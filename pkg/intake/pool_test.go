package intake

import (
	"testing"
	"time"
)

func TestWorkerPool_ShedsWhenQueueFull(t *testing.T) {
	wp := newWorkerPool(1, 1)

	blocking := make(chan struct{})
	release := make(chan struct{})

	if !wp.trySubmit(func() {
		close(blocking)
		<-release
	}) {
		t.Fatal("expected first submit to succeed")
	}
	<-blocking // wait until the worker is actually busy

	if !wp.trySubmit(func() {}) {
		t.Fatal("expected second submit to fill the queue")
	}

	if wp.trySubmit(func() {}) {
		t.Fatal("expected third submit to be shed (queue full)")
	}

	close(release)
	time.Sleep(10 * time.Millisecond) // let the pool drain before test exit
}
