package faspay

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const suffixSpace = 36 * 36 * 36 * 36 * 36 * 36 // 36^6

// suffixStride is coprime to 36^6, so successive suffixes walk the whole
// residue space before repeating. Two ids generated in the same millisecond
// therefore never share a suffix.
const suffixStride = 48_271

var suffixState uint64

func init() {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err == nil {
		suffixState = binary.BigEndian.Uint64(seed[:]) % suffixSpace
	} else {
		suffixState = uint64(time.Now().UnixNano()) % suffixSpace
	}
}

// NewExternalID returns the X-EXTERNAL-ID header value for a SNAP request.
// Faspay requires it to be unique per calendar day: UTC timestamp down to the
// second plus a zero-padded 10-digit random suffix.
func NewExternalID() string {
	dateStr := time.Now().UTC().Format("20060102150405")
	random := rand.Int63n(10_000_000_000)
	return dateStr + fmt.Sprintf("%010d", random)
}

// NewMerchantOrderID returns a fresh bill_no for one payment attempt:
// OASIS-{PLAN}-{unixMillis}-{RANDOM6}. The id is the idempotency key for the
// whole payment flow; the transactions table still carries a uniqueness
// constraint on it.
func NewMerchantOrderID(planID string) string {
	millis := time.Now().UnixMilli()
	return fmt.Sprintf("OASIS-%s-%d-%s", strings.ToUpper(planID), millis, nextSuffix())
}

func nextSuffix() string {
	n := atomic.AddUint64(&suffixState, suffixStride) % suffixSpace
	var b [6]byte
	for i := 5; i >= 0; i-- {
		b[i] = base36[n%36]
		n /= 36
	}
	return string(b[:])
}
