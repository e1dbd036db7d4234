// Package feeds manages RSS/Atom subscriptions and turns feed items into
// candidate entries for the pipeline. Fetching and parsing go through
// gofeed; subscriptions persist in the store. OPML import/export covers
// migration to and from other readers.
package feeds
