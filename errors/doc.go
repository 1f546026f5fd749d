// Package errors classifies the errors eventscope components return.
//
// Three classes drive handling decisions:
//
//   - Transient: connection loss, timeouts, unavailable brokers (retry)
//   - Invalid: malformed batches, bad configuration, configuration bus contract violations
//   - Fatal: conditions that should stop the process
//
// Data-shape conditions on the event stream (out-of-order resets, frames without an
// anchor, lookup misses) are not errors and never pass through this package.
//
// Wrap third-party errors with the component and operation that saw them:
//
//	if err := client.Subscribe(ctx, subject, h); err != nil {
//	    return errors.WrapTransient(err, "NATSInput", "Start", "subscribe")
//	}
//
// and test the class or the sentinel at the call site:
//
//	if errors.Is(err, errors.ErrKeyNotFound) { ... }
//	if errors.IsTransient(err) { ... }
package errors
