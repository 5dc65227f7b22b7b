package switchbot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Sign computes the request signature: base64 of HMAC-SHA256 keyed by
// secret over token, the millisecond timestamp and the nonce.
func Sign(token, secret, nonce string, timestampMillis int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token + strconv.FormatInt(timestampMillis, 10) + nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Signer produces fresh authentication headers for every request.
type Signer struct {
	token  string
	secret string
	now    func() time.Time
	nonce  func() string
}

func NewSigner(token, secret string) *Signer {
	return &Signer{
		token:  token,
		secret: secret,
		now:    time.Now,
		nonce:  uuid.NewString,
	}
}

// WithClock replaces the time source.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// WithNonce replaces the nonce source.
func (s *Signer) WithNonce(nonce func() string) *Signer {
	s.nonce = nonce
	return s
}

// Headers returns a new set of signed headers. The result must not be reused
// for another request.
func (s *Signer) Headers() http.Header {
	ts := s.now().UnixMilli()
	nonce := s.nonce()

	h := make(http.Header, 5)
	h.Set("Authorization", s.token)
	h.Set("t", strconv.FormatInt(ts, 10))
	h.Set("sign", Sign(s.token, s.secret, nonce, ts))
	h.Set("nonce", nonce)
	h.Set("Content-Type", "application/json; charset=utf8")
	return h
}
