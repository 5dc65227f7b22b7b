package switchbot_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/plugmon/internal/switchbot"
	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	sig := switchbot.Sign("token", "secret", "nonce-1", 1700000000000)
	assert.Equal(t, "5Z4rSU2ZX0xJU6pn+C+vXd3lDzQkXX8iwCP4OLgST4I=", sig)
	assert.Equal(t, sig, switchbot.Sign("token", "secret", "nonce-1", 1700000000000))
	assert.NotEqual(t, sig, switchbot.Sign("token", "secret", "nonce-2", 1700000000000))
	assert.NotEqual(t, sig, switchbot.Sign("token", "secret", "nonce-1", 1700000000001))
}

func TestSignerHeaders(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	signer := switchbot.NewSigner("token", "secret").
		WithClock(func() time.Time { return now }).
		WithNonce(func() string { return "nonce-1" })

	h := signer.Headers()
	assert.Equal(t, "token", h.Get("Authorization"))
	assert.Equal(t, "1700000000000", h.Get("t"))
	assert.Equal(t, "nonce-1", h.Get("nonce"))
	assert.Equal(t, "5Z4rSU2ZX0xJU6pn+C+vXd3lDzQkXX8iwCP4OLgST4I=", h.Get("sign"))
	assert.Equal(t, "application/json; charset=utf8", h.Get("Content-Type"))
}

func TestSignerFreshNonce(t *testing.T) {
	signer := switchbot.NewSigner("token", "secret")

	first := signer.Headers()
	second := signer.Headers()
	assert.NotEmpty(t, first.Get("nonce"))
	assert.NotEqual(t, first.Get("nonce"), second.Get("nonce"))
}
