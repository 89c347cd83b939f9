package services

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// FingerprintInputs describes the client behind a download request.
type FingerprintInputs struct {
	Address string
	Agent   string
	At      time.Time
}

// Fingerprinter derives the dedup key for a download request. Two requests
// with equal keys count as one distinct download. Keys are opaque and at most
// 64 bytes.
type Fingerprinter interface {
	Fingerprint(in FingerprintInputs) string
}

// DailyFingerprinter keys on address, agent and the UTC calendar day, so the
// same client counts again on the next day.
type DailyFingerprinter struct{}

func (DailyFingerprinter) Fingerprint(in FingerprintInputs) string {
	day := in.At.UTC().Format(time.DateOnly)
	sum := blake2b.Sum256([]byte(in.Address + "\x00" + in.Agent + "\x00" + day))
	return hex.EncodeToString(sum[:])
}
