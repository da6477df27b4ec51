// Package auth is the authorization gateway: it signs descriptors on
// construction and verifies authorization envelopes on ingestion. Signature
// cryptography runs locally; identity resolution and permission lookups are
// external collaborators consumed through narrow interfaces.
package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"recnode.dev/recnode/records"
)

// IdentityResolver resolves a key identifier to raw public key bytes. A
// resolver may consult the network or a key service; it takes a context and
// its failures reject the message being verified.
type IdentityResolver interface {
	ResolveKey(ctx context.Context, keyID string) ([]byte, error)
}

// RecordLookup lets a verifier consult previously accepted writes when
// deciding whether the signing identity may write this record. Policy
// evaluation is owned by the implementation, not by this package.
type RecordLookup interface {
	Authorize(ctx context.Context, msg *records.Message) error
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// SelfDescribing resolves key identifiers that carry their own public key:
// ed25519:<base64> or dilithium3:<base64>. It performs no I/O.
type SelfDescribing struct{}

func (SelfDescribing) ResolveKey(_ context.Context, keyID string) ([]byte, error) {
	alg, enc, ok := strings.Cut(keyID, ":")
	if !ok {
		return nil, records.NewError(records.KindAuthorization, "REC-AUTH-111", "invalid key identifier encoding")
	}
	pub, err := decodeBase64(enc)
	if err != nil {
		return nil, records.WrapError(records.KindAuthorization, "REC-AUTH-113", "invalid key identifier base64", err)
	}
	switch alg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return nil, records.NewError(records.KindAuthorization, "REC-AUTH-114", "invalid ed25519 public key length")
		}
		return pub, nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return nil, records.WrapError(records.KindAuthorization, "REC-AUTH-115", "invalid dilithium3 public key", err)
		}
		return pub, nil
	default:
		return nil, records.NewError(records.KindAuthorization, "REC-AUTH-112", "unsupported key identifier encoding")
	}
}

// Verify checks the authorization envelope of an ingested message against
// its descriptor. Any failure rejects the message wholesale; a rejected
// message never becomes a resolution candidate.
//
// The envelope signature must cover exactly the canonical bytes of
// {descriptor}; encodedData is never signed.
func Verify(ctx context.Context, msg *records.Message, ids IdentityResolver, lookup RecordLookup) error {
	if msg == nil {
		return records.NewError(records.KindAuthorization, "REC-AUTH-001", "nil message")
	}
	if ids == nil {
		return records.NewError(records.KindAuthorization, "REC-AUTH-002", "missing identity resolver")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	env := msg.Authorization
	if env.SignatureAlg == "" {
		return records.NewError(records.KindAuthorization, "REC-AUTH-101", "missing signatureAlg")
	}
	if env.HashAlg == "" {
		return records.NewError(records.KindAuthorization, "REC-AUTH-102", "missing hashAlg")
	}
	if env.KeyID == "" {
		return records.NewError(records.KindAuthorization, "REC-AUTH-103", "missing keyId")
	}
	if env.Signature == "" {
		return records.NewError(records.KindAuthorization, "REC-AUTH-104", "missing signature")
	}

	keyAlg, _, ok := strings.Cut(env.KeyID, ":")
	if !ok {
		return records.NewError(records.KindAuthorization, "REC-AUTH-111", "invalid key identifier encoding")
	}
	if keyAlg != env.SignatureAlg {
		return records.NewError(records.KindAuthorization, "REC-AUTH-121", "key identifier alg does not match signatureAlg")
	}

	pub, err := ids.ResolveKey(ctx, env.KeyID)
	if err != nil {
		if records.IsKind(err, records.KindAuthorization) {
			return err
		}
		return records.WrapError(records.KindAuthorization, "REC-AUTH-122", "identity resolution failed", err)
	}

	sig, err := decodeBase64(env.Signature)
	if err != nil {
		return records.WrapError(records.KindAuthorization, "REC-AUTH-131", "invalid signature base64", err)
	}

	signed, err := msg.Descriptor.SignedBytes()
	if err != nil {
		return err
	}
	digest, err := digestFor(env.HashAlg, signed)
	if err != nil {
		return records.WrapError(records.KindAuthorization, "REC-AUTH-201", "unsupported hashAlg", err)
	}

	switch env.SignatureAlg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return records.NewError(records.KindAuthorization, "REC-AUTH-114", "invalid ed25519 public key length")
		}
		if len(sig) != ed25519.SignatureSize {
			return records.NewError(records.KindAuthorization, "REC-AUTH-132", "invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return records.NewError(records.KindAuthorization, "REC-AUTH-401", "signature invalid")
		}
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return records.WrapError(records.KindAuthorization, "REC-AUTH-115", "invalid dilithium3 public key", err)
		}
		if len(sig) != mode3.SignatureSize {
			return records.NewError(records.KindAuthorization, "REC-AUTH-133", "invalid dilithium3 signature length")
		}
		if !mode3.Verify(&pk, digest, sig) {
			return records.NewError(records.KindAuthorization, "REC-AUTH-401", "signature invalid")
		}
	default:
		return records.NewError(records.KindAuthorization, "REC-AUTH-301", "unsupported signatureAlg")
	}

	if lookup != nil {
		if err := lookup.Authorize(ctx, msg); err != nil {
			if records.IsKind(err, records.KindAuthorization) {
				return err
			}
			return records.WrapError(records.KindAuthorization, "REC-AUTH-501", "write not permitted", err)
		}
	}
	return nil
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
