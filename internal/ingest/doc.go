// Package ingest turns uploaded files into indexed chunks in the background.
//
// Submit validates a staged file, records it as PENDING and queues it. A fixed
// pool of workers extracts, normalizes, segments, embeds and stores each
// document, recording progress in a StatusStore that status endpoints read.
// One document failing never affects another.
package ingest
