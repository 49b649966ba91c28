// Package transfer streams a single URL to a file on disk while publishing
// progress documents and liveness pings.
//
// Engine.Transfer never returns an error: every failure is converted into a
// failed Result, a terminal error progress record, and removal of any partial
// file. A progress record that is still downloading and younger than the
// re-entry window short-circuits a duplicate dispatch of the same download.
package transfer
