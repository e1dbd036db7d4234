// Package skill invokes the external content-processing CLI for feed
// entries and clips, extracts the created note path from its output, and
// classifies failures as transient or permanent.
package skill
