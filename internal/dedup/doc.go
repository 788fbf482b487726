// Package dedup detects repeated message content per conversation and
// decides what to do about it. It keeps a bounded in-memory record of
// content fingerprints, tracks which conversations are monitored, and
// aggregates operating statistics. Nothing here talks to a messaging
// platform; transports feed descriptors in and execute the actions
// that come back.
package dedup
