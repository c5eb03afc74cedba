package domain

import "time"

// TrackedWallet is a wallet registered for periodic feed export.
type TrackedWallet struct {
	Address    string
	LastSeenAt time.Time
	// ExportedThrough is the newest activity timestamp (ms) already published.
	ExportedThrough int64
	// ExportedHashes are the hashes already published at ExportedThrough.
	ExportedHashes []string
}
