package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"time"
)

const totpPeriod = 30 * time.Second

// GenerateTOTPSecret returns a new base32 secret for an authenticator app.
func GenerateTOTPSecret() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate MFA secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// TOTPCode derives the 6-digit code for the given secret at time t (RFC 6238).
func TOTPCode(secret string, t time.Time) (string, error) {
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("malformed MFA secret: %w", err)
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(t.Unix())/uint64(totpPeriod.Seconds()))

	mac := hmac.New(sha1.New, key)
	mac.Write(counter[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%06d", code%1_000_000), nil
}

// VerifyTOTP checks a supplied code against a sliding window of skew steps
// either side of now. Comparison is constant time per candidate.
func VerifyTOTP(secret, supplied string, skew int, now time.Time) bool {
	ok := false
	for i := -skew; i <= skew; i++ {
		candidate, err := TOTPCode(secret, now.Add(time.Duration(i)*totpPeriod))
		if err != nil {
			return false
		}
		// evaluate every candidate to keep timing uniform
		if ConstantTimeEquals(candidate, supplied) {
			ok = true
		}
	}
	return ok
}
