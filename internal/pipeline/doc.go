// Package pipeline orchestrates content-processing runs: single-instance
// locking, gathering retry candidates and fresh feed entries, invoking the
// external tool per item, recording outcomes, and sending notifications.
// It also hosts the clip-promotion flow over the vault's unprocessed
// clippings folder.
package pipeline
