// Package cryptox derives shared secrets used by the radio protocol.
//
// The radio firmware does all message encryption and signing itself; the
// companion only has to produce the 16-byte channel secret that every
// participant of a named channel derives from the same passphrase.
package cryptox

import (
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// ChannelSecretSize is the wire width of a channel secret.
const ChannelSecretSize = 16

// channelSalt pins the derivation context so the same passphrase used for
// anything else does not collide with channel secrets. Every device sharing
// a channel must use the same constant, so it cannot be configuration.
var channelSalt = []byte("mclink/channel-secret/v1")

// DeriveChannelSecret derives the 16-byte channel secret from a passphrase.
// The derivation is deterministic: all participants entering the same
// passphrase obtain the same secret. Argon2id parameters follow the
// RFC 9106 low-memory recommendation.
func DeriveChannelSecret(passphrase string) []byte {
	return argon2.IDKey([]byte(passphrase), channelSalt, 3, 64*1024, 4, ChannelSecretSize)
}

// PublicChannelSecret returns the all-zero secret of the built-in public
// channel (slot 0).
func PublicChannelSecret() []byte {
	return make([]byte, ChannelSecretSize)
}

// SecretsEqual compares two channel secrets in constant time.
func SecretsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
