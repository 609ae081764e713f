package paperbase

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowUnix returns current time as Unix seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}

// ContentID derives a stable document id from source bytes: the first 12 hex
// chars of the SHA-256. Re-ingesting identical bytes maps to the same id.
func ContentID(data []byte) (id, sum string) {
	h := sha256.Sum256(data)
	sum = hex.EncodeToString(h[:])
	return sum[:12], sum
}
