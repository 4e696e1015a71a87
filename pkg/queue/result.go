package queue

// Result is the best-effort outcome of an enqueue. Callers are not expected
// to wait on it: failures are already logged and counted when they happen.
// Tests and shutdown paths may wait through Done.
type Result struct {
	done  chan struct{}
	jobID string
	err   error
}

func newResult() *Result {
	return &Result{done: make(chan struct{})}
}

// failedResult is a Result that completed with err before any I/O.
func failedResult(err error) *Result {
	r := newResult()
	r.finish("", err)
	return r
}

func (r *Result) finish(jobID string, err error) {
	r.jobID = jobID
	r.err = err
	close(r.done)
}

// Done is closed once the job is stored or the enqueue has failed.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Err returns the enqueue error once Done is closed, nil before.
func (r *Result) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// JobID returns the stored job's id once Done is closed.
func (r *Result) JobID() string {
	select {
	case <-r.done:
		return r.jobID
	default:
		return ""
	}
}
