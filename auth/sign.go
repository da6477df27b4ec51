package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"recnode.dev/recnode/records"
)

// Ed25519Signer signs descriptor bytes with an ed25519 key over a
// configurable pre-hash. The zero value is unusable; construct with
// NewEd25519Signer.
type Ed25519Signer struct {
	priv    ed25519.PrivateKey
	keyID   string
	hashAlg string
}

// NewEd25519Signer builds a signer for priv. hashAlg must be one of:
// sha256, sha512, sha3-256.
func NewEd25519Signer(priv ed25519.PrivateKey, hashAlg string) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, records.NewError(records.KindSigning, "REC-SIGN-101", "invalid ed25519 private key length")
	}
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, records.WrapError(records.KindSigning, "REC-SIGN-102", "unsupported hash algorithm", err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{
		priv:    priv,
		keyID:   "ed25519:" + base64.StdEncoding.EncodeToString(pub),
		hashAlg: hashAlg,
	}, nil
}

// KeyID returns the self-describing key identifier this signer embeds in
// envelopes.
func (s *Ed25519Signer) KeyID() string { return s.keyID }

func (s *Ed25519Signer) Sign(ctx context.Context, payload []byte) (records.Authorization, error) {
	if err := ctx.Err(); err != nil {
		return records.Authorization{}, err
	}
	digest, err := digestFor(s.hashAlg, payload)
	if err != nil {
		return records.Authorization{}, records.WrapError(records.KindSigning, "REC-SIGN-102", "unsupported hash algorithm", err)
	}
	sig := ed25519.Sign(s.priv, digest)
	return records.Authorization{
		KeyID:        s.keyID,
		SignatureAlg: "ed25519",
		HashAlg:      s.hashAlg,
		Signature:    base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Dilithium3Signer signs descriptor bytes with a dilithium3 (post-quantum)
// key over a configurable pre-hash.
type Dilithium3Signer struct {
	priv    *mode3.PrivateKey
	keyID   string
	hashAlg string
}

// NewDilithium3Signer builds a signer for priv. hashAlg must be one of:
// sha256, sha512, sha3-256.
func NewDilithium3Signer(pub *mode3.PublicKey, priv *mode3.PrivateKey, hashAlg string) (*Dilithium3Signer, error) {
	if pub == nil || priv == nil {
		return nil, records.NewError(records.KindSigning, "REC-SIGN-111", "missing dilithium3 key material")
	}
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, records.WrapError(records.KindSigning, "REC-SIGN-102", "unsupported hash algorithm", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, records.WrapError(records.KindSigning, "REC-SIGN-112", "invalid dilithium3 public key", err)
	}
	return &Dilithium3Signer{
		priv:    priv,
		keyID:   "dilithium3:" + base64.StdEncoding.EncodeToString(pubBytes),
		hashAlg: hashAlg,
	}, nil
}

// KeyID returns the self-describing key identifier this signer embeds in
// envelopes.
func (s *Dilithium3Signer) KeyID() string { return s.keyID }

func (s *Dilithium3Signer) Sign(ctx context.Context, payload []byte) (records.Authorization, error) {
	if err := ctx.Err(); err != nil {
		return records.Authorization{}, err
	}
	digest, err := digestFor(s.hashAlg, payload)
	if err != nil {
		return records.Authorization{}, records.WrapError(records.KindSigning, "REC-SIGN-102", "unsupported hash algorithm", err)
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return records.Authorization{
		KeyID:        s.keyID,
		SignatureAlg: "dilithium3",
		HashAlg:      s.hashAlg,
		Signature:    base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// GenerateDilithium3Keypair returns a new dilithium3 keypair.
func GenerateDilithium3Keypair(rand io.Reader) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	return mode3.GenerateKey(rand)
}
