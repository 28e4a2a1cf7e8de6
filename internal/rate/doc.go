// Package rate provides fixed-window attempt counters on top of store.Store.
//
// # Window semantics
//
// INCR + EXPIRE on first hit. Keys live under the ratelimit: namespace:
//   - ratelimit:login:<email>
//   - ratelimit:login_ip:<ip>
//   - ratelimit:code:<purpose>:<email>
//
// # What this package must NOT do
//
//   - Decide what a rejection means to the caller. It only counts.
//   - Be imported outside the authcore module.
package rate
