// Package notifications delivers item lifecycle events to users.
//
// The Feed keeps a store-backed list of server notifications that the first
// reader drains. When an ntfy topic is configured the same events are also
// pushed over HTTP; push failures are reported to the caller but never stop
// the feed. All worker code depends only on the Publisher interface.
package notifications
