// Package multitrack drives the external multi-track downloader.
//
// The CLI runner invokes the configured downloader binary with the item's
// URL and a fixed flag set, streaming every output chunk to a callback. After
// a successful run the verification mode of the same tool lists the tracks
// present under the music root; Match compares that list with the item's
// expected tracks.
package multitrack
