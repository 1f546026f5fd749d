// Package natsclient wraps a NATS connection with retrying connect, status
// tracking, and subscription bookkeeping.
//
// Connect retries transient failures with exponential backoff (pkg/retry)
// until the configured attempts are exhausted or the context ends. Once
// connected, reconnection is left to nats.go and surfaced through Status and
// the health callback.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("eventscope"),
//	    natsclient.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Subscribe(ctx, "camera.events", func(ctx context.Context, data []byte) {
//	    // decode and insert
//	})
package natsclient
