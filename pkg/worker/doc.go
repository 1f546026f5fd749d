// Package worker provides a generic bounded worker pool.
//
// Submit never blocks: when the queue is full the item is dropped and
// ErrQueueFull is returned, so a slow consumer applies backpressure by loss
// rather than by stalling the producer. Always-on counters are available from
// Stats; Prometheus metrics are registered when WithMetrics is given.
//
// A pool with a single worker processes items in the order they were
// submitted, which is how the NATS input decodes batches off the delivery
// goroutine without reordering them:
//
//	pool, err := worker.NewPool(1, 256, func(ctx context.Context, data []byte) error {
//	    return handle(ctx, data)
//	}, worker.WithMetrics[[]byte](registry, "nats_decode"))
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(msg); errors.Is(err, worker.ErrQueueFull) {
//	    // dropped
//	}
package worker
