package domain

import (
	"time"
)

// Format is the requested media format.
type Format string

const (
	FormatAudio Format = "audio"
	FormatVideo Format = "video"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatAudio || f == FormatVideo
}

// DownloadState is the position of a user in the media download flow.
// A user without a Pending entry is idle; Delivered and Cancelled end the
// flow and drop the entry.
type DownloadState string

const (
	StateAwaitingChoice DownloadState = "awaiting_choice"
	StateDownloading    DownloadState = "downloading"
	StateDelivered      DownloadState = "delivered"
	StateFailed         DownloadState = "failed"
	StateCancelled      DownloadState = "cancelled"
)

// Pending is the download choice a user still has to make or retry.
// Format is empty until the first attempt.
type Pending struct {
	URL       string
	Format    Format
	State     DownloadState
	UpdatedAt time.Time
}

// CanRetry returns true if a previous attempt can be replayed as-is.
func (p Pending) CanRetry() bool {
	return p.URL != "" && p.Format.Valid()
}
