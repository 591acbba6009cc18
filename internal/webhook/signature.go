package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// MaxTimestampSkew is the accepted clock drift for signed callbacks.
const MaxTimestampSkew = 300 * time.Second

// Signature headers set by the provider on each callback.
const (
	HeaderToken     = "X-GEWE-TOKEN"
	HeaderTimestamp = "X-GEWE-TIMESTAMP"
	HeaderSign      = "X-GEWE-SIGN"
)

var (
	errTokenMismatch     = errors.New("token mismatch")
	errMissingTimestamp  = errors.New("missing timestamp")
	errTimestampSkew     = errors.New("timestamp outside accepted window")
	errSignatureMismatch = errors.New("signature mismatch")
)

// VerifySignature checks a callback's authenticity: the token header must
// equal the account token, the timestamp must be within MaxTimestampSkew of
// now, and the sign header must be the hex HMAC-SHA256 of "{ts}:{body}"
// keyed by the webhook secret (the account token when no secret is set).
func VerifySignature(token, secret, headerToken, headerTS, headerSign string, body []byte, now time.Time) error {
	if headerToken != token {
		return errTokenMismatch
	}

	if headerTS == "" {
		return errMissingTimestamp
	}
	ts, err := strconv.ParseInt(headerTS, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", headerTS, err)
	}
	// Whole-second comparison: sub-second fractions of now must not push a
	// timestamp exactly at the boundary over it.
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(MaxTimestampSkew/time.Second) {
		return errTimestampSkew
	}

	key := secret
	if key == "" {
		key = token
	}
	mac := hmac.New(sha256.New, []byte(key))
	fmt.Fprintf(mac, "%s:", headerTS)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(headerSign)) {
		return errSignatureMismatch
	}
	return nil
}
