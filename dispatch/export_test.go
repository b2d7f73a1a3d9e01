package dispatch

import "github.com/slok/writeharness/worker"

// FailSubmit makes the submission of the writes matched by fail return err
// instead of reaching the worker pool.
func FailSubmit(d *Dispatcher, err error, fail func(seq int) bool) {
	d.submit = func(pool *worker.Pool, w, seq int, job func()) error {
		if fail(seq) {
			return err
		}
		return pool.Submit(w, job)
	}
}
