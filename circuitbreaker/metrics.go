package circuitbreaker

import (
	"sync"
	"time"
)

type bucket struct {
	errs int
}

// bucketWindow records the data in N buckets of T duration, the N buckets
// will be the window of recording. The window slides when it's used so it
// doesn't need a background goroutine.
type bucketWindow struct {
	// Used to keep track of the oldest bucket replace the oldest bucket
	// on the window, this can be made because we don't need order to get
	// the errors of all the window.
	nextIndexToReplace int
	bucketDuration     time.Duration
	bucketStarted      time.Time
	window             []*bucket
	currentBucket      *bucket
	now                func() time.Time
	mu                 sync.Mutex
}

func newBucketWindow(bucketQuantity int, bucketDuration time.Duration, now func() time.Time) *bucketWindow {
	// If no bucketNumber then act as a unique counter.
	if bucketQuantity <= 0 {
		bucketQuantity = 1
	}

	b := &bucketWindow{
		bucketDuration: bucketDuration,
		window:         make([]*bucket, bucketQuantity),
		now:            now,
	}
	b.reset()

	return b
}

// slide will slide the bucket moving window based on the time passed since
// the current bucket started by replacing the oldest buckets with new ones.
// Needs to be called with the lock acquired.
func (b *bucketWindow) slide() {
	// Only move the window if we have a duration for the buckets.
	if b.bucketDuration <= 0 {
		return
	}

	elapsed := int(b.now().Sub(b.bucketStarted) / b.bucketDuration)
	if elapsed <= 0 {
		return
	}
	b.bucketStarted = b.bucketStarted.Add(time.Duration(elapsed) * b.bucketDuration)

	// We don't need to replace more buckets than the window has.
	replace := elapsed
	if replace > len(b.window) {
		replace = len(b.window)
	}
	for i := 0; i < replace; i++ {
		// Create a new bucket and replace the oldest one.
		bucket := &bucket{}
		b.window[b.nextIndexToReplace] = bucket
		b.currentBucket = bucket

		// Leave ready the next one to be replaced
		b.nextIndexToReplace++
		// If we have passed the length start from 0 again.
		if b.nextIndexToReplace >= len(b.window) {
			b.nextIndexToReplace = 0
		}
	}
}

func (b *bucketWindow) inc(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slide()
	if err != nil {
		b.currentBucket.errs++
	}
}

func (b *bucketWindow) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Init the bucket window.
	for i := range b.window {
		b.window[i] = &bucket{}
	}
	// Set the current bucket.
	b.currentBucket = b.window[0]
	b.bucketStarted = b.now()
	// Set the next bucket position.
	b.nextIndexToReplace = 1 % len(b.window)
}

func (b *bucketWindow) errors() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slide()

	var errs int
	for _, bucket := range b.window {
		errs += bucket.errs
	}
	return errs
}
