package config

import "encoding/base64"

// secretCipher applies a keyed, deterministic, reversible transformation
// to credential bytes before they reach the backend. It is obfuscation,
// not cryptography: spec.md §9 is explicit that a keyed XOR satisfies the
// raw-storage-scan invariant in non-hardware builds, and that production
// hardware would instead rely on a platform-provided encrypted storage
// partition. Swapping this out for AES-GCM or similar is a drop-in change
// that does not alter the Store API.
type secretCipher struct {
	key []byte
}

// defaultSecretKey is fixed and deterministic, as the spec requires
// ("keyed, deterministic"): the same plaintext always encrypts to the
// same ciphertext, which is what makes the round-trip tests in §8
// reproducible. It is intentionally longer than any valid password (64
// bytes max) so the keystream never has to repeat within one field.
var defaultSecretKey = []byte(
	"tapsync-metronome-config-secret-key-v1-do-not-use-for-real-crypto!!",
)

func newSecretCipher() *secretCipher {
	return &secretCipher{key: defaultSecretKey}
}

func (c *secretCipher) xor(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ c.key[i%len(c.key)]
	}
	return out
}

// Seal turns plaintext into a base64-encoded ciphertext string suitable
// for embedding in a YAML document. An empty plaintext seals to an empty
// string so absent credentials round-trip as absent, not as a non-empty
// ciphertext of zero-length input.
func (c *secretCipher) Seal(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString(c.xor([]byte(plaintext)))
}

// Open reverses Seal. A malformed ciphertext (e.g. hand-edited storage)
// yields an empty string rather than an error; the store treats that the
// same as "credential not set".
func (c *secretCipher) Open(ciphertext string) string {
	if ciphertext == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return ""
	}
	return string(c.xor(raw))
}
