package faspay

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Faspay runs two incompatible signing schemes side by side: the Legacy Debit
// API chains SHA1 over an MD5 hex digest, the SNAP API signs a canonical
// string with HMAC. Both are implemented here as separate strategies; callers
// pick one explicitly per endpoint, there is no version flag on the wire.

// CallbackVerifier is the capability the callback processor needs: check a
// received notification signature without learning the secret.
type CallbackVerifier interface {
	VerifyCallback(billNo, statusCode, signature string) bool
}

// LegacySigner implements the Legacy Debit signature:
// SHA1(MD5(merchantID + password + billNo [+ statusCode])), hex digests
// lower-cased before chaining.
type LegacySigner struct {
	MerchantID string
	Password   string
}

func NewLegacySigner(cfg Config) LegacySigner {
	return LegacySigner{MerchantID: cfg.MerchantID, Password: cfg.Password}
}

// SignRequest signs an outbound VA creation request (no status code field).
func (s LegacySigner) SignRequest(billNo string) string {
	return s.chain(s.MerchantID + s.Password + billNo)
}

// SignCallback computes the signature Faspay attaches to payment
// notifications (status code included in the preimage).
func (s LegacySigner) SignCallback(billNo, statusCode string) string {
	return s.chain(s.MerchantID + s.Password + billNo + statusCode)
}

// VerifyCallback recomputes the callback signature and compares it
// case-insensitively in constant time.
func (s LegacySigner) VerifyCallback(billNo, statusCode, signature string) bool {
	expected := s.SignCallback(billNo, statusCode)
	received := strings.ToLower(signature)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

func (s LegacySigner) chain(preimage string) string {
	md5Hex := md5.Sum([]byte(preimage))
	sha1Hex := sha1.Sum([]byte(hex.EncodeToString(md5Hex[:])))
	return hex.EncodeToString(sha1Hex[:])
}

// SigningContext carries everything that goes into a SNAP canonical string.
// Body must be the exact bytes on the wire: re-serializing a decoded payload
// can reorder keys and break the hash, so inbound verification always hashes
// the raw received body.
type SigningContext struct {
	Method      string
	Path        string
	AccessToken string // optional, some endpoints carry no token
	Timestamp   string // ISO-8601 with explicit offset
	Body        []byte
}

// StringToSign builds the SNAP canonical string:
// Method:Path[:AccessToken]:lowerhex(SHA256(Body)):Timestamp
func (c SigningContext) StringToSign() string {
	bodyHash := sha256.Sum256(c.Body)
	hashHex := strings.ToLower(hex.EncodeToString(bodyHash[:]))

	parts := []string{c.Method, c.Path}
	if c.AccessToken != "" {
		parts = append(parts, c.AccessToken)
	}
	parts = append(parts, hashHex, c.Timestamp)
	return strings.Join(parts, ":")
}

// SnapSigner implements the SNAP signature pair. Faspay uses HMAC-SHA512 for
// request signatures but HMAC-SHA256 for callback signatures; the split is
// theirs, do not unify the two.
type SnapSigner struct {
	ClientSecret string
}

func NewSnapSigner(cfg Config) SnapSigner {
	return SnapSigner{ClientSecret: cfg.Password}
}

// SignRequest produces the X-SIGNATURE header value for an outbound call.
func (s SnapSigner) SignRequest(ctx SigningContext) string {
	mac := hmac.New(sha512.New, []byte(s.ClientSecret))
	mac.Write([]byte(ctx.StringToSign()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyCallback checks an inbound SNAP notification signature. The full
// base64 string must match exactly; any hashing trouble counts as a mismatch.
func (s SnapSigner) VerifyCallback(ctx SigningContext, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.ClientSecret))
	mac.Write([]byte(ctx.StringToSign()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
