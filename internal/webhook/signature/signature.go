// Package signature verifies HMAC signatures of inbound webhook deliveries.
package signature

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // sha1 is still offered by some providers for webhook signatures
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"go.uber.org/zap"
)

// Algorithm is the digest used to compute a webhook HMAC.
type Algorithm string

const (
	// SHA256 is used by GitHub (X-Hub-Signature-256) and Bitbucket (X-Hub-Signature).
	SHA256 Algorithm = "sha256"
	// SHA1 is the legacy GitHub X-Hub-Signature digest.
	SHA1 Algorithm = "sha1"
	// SHA512 signatures are compared as raw hex without a prefix.
	SHA512 Algorithm = "sha512"
)

// Verifier checks webhook signatures.
type Verifier struct {
	logger *zap.SugaredLogger
}

// New creates a new signature verifier.
func New(logger *zap.SugaredLogger) *Verifier {
	return &Verifier{logger: logger}
}

// Verify reports whether headerSignature matches the HMAC of body under secret.
// An empty secret disables verification and always returns true.
func (v *Verifier) Verify(body []byte, headerSignature, secret string, algo Algorithm) bool {
	if secret == "" {
		v.logger.Warnw("webhook secret not configured, skipping signature verification",
			"algorithm", string(algo),
		)
		return true
	}

	expected, err := Sign(body, secret, algo)
	if err != nil {
		v.logger.Errorw("failed to compute webhook signature", "error", err)
		return false
	}

	return hmac.Equal([]byte(expected), []byte(headerSignature))
}

// Sign computes the signature a provider would send for body.
// sha256 and sha1 are formatted as "<algo>=<hex>", other digests as raw hex.
func Sign(body []byte, secret string, algo Algorithm) (string, error) {
	newHash, err := hashFunc(algo)
	if err != nil {
		return "", err
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	digest := hex.EncodeToString(mac.Sum(nil))

	switch algo {
	case SHA256, SHA1:
		return string(algo) + "=" + digest, nil
	default:
		return digest, nil
	}
}

func hashFunc(algo Algorithm) (func() hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New, nil
	case SHA1:
		return sha1.New, nil
	case SHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported signature algorithm: %q", algo)
	}
}
