// Package dedup computes the fingerprint used to recognise a transaction that was
// already imported from the same source.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// HashLength is the number of hex characters kept from the SHA-256 digest.
const HashLength = 16

// Payload returns the exact string that is hashed for a transaction.
// The amount is always rendered with two decimals so 12.5 and 12.50 collide.
func Payload(sourceID int64, isoDate, description string, amount decimal.Decimal) string {
	return strings.Join([]string{
		strconv.FormatInt(sourceID, 10),
		isoDate,
		description,
		amount.StringFixed(2),
	}, "|")
}

// Hash returns the 16 hex character duplicate-detection fingerprint.
// isoDate must already be normalized to YYYY-MM-DD.
func Hash(sourceID int64, isoDate, description string, amount decimal.Decimal) string {
	sum := sha256.Sum256([]byte(Payload(sourceID, isoDate, description, amount)))
	return hex.EncodeToString(sum[:])[:HashLength]
}
