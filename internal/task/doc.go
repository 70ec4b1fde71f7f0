// Package task runs jobs in the background. A Dispatcher owns a fixed pool
// of workers reading job ids from a bounded FIFO queue; each worker moves
// its job through processing to a terminal state using the registered
// Handler for the job's type. Cancellation is cooperative: a worker checks
// for it at every step boundary reported through Run.Checkpoint.
package task
