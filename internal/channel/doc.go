// Package channel implements the token channel: an in-memory, named-group
// publish/subscribe bus used to fan generation progress out to connected
// sessions.
//
// # Groups
//
// Group names are opaque strings. The generation service publishes to one
// group per tune (see tune.GroupName) and each session gateway subscribes to
// the groups its client registered for. The channel itself knows nothing
// about tunes or sessions.
//
// # Delivery
//
//	ch, subID := tc.Subscribe(ctx, group)
//	tc.Publish(group, event)
//	tc.Unsubscribe(group, subID)
//
// Within one group, events from a single publisher are delivered to each
// subscriber in publish order. No ordering holds across groups. Delivery is
// best-effort: a subscriber whose buffer is full misses the event, and
// recovers on the next one because events carry the full accumulated text
// rather than deltas.
//
// # Lifecycle
//
// A TokenChannel is created at process start and passed down explicitly, so
// test runs can hold several independent instances. Close tears down all
// subscriptions; a subscription is also torn down when its context is
// cancelled.
package channel
