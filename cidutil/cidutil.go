package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"recnode.dev/recnode/codec"
)

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash. Used for opaque payload bytes.
func CIDv1RawSHA256(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// CIDv1DagCBORSHA256 returns a CIDv1 (dag-cbor + sha2-256) over the
// canonical CBOR encoding of v. Identical logical values yield identical
// CIDs regardless of map insertion order, because the encoder sorts keys.
//
// The only failure mode is an encoder-level structural error (a value the
// encoder cannot represent); callers treat that as fatal to the operation.
func CIDv1DagCBORSHA256(v any) (cid.Cid, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return cid.Undef, err
	}
	sum, err := multihash.Sum(b, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, sum), nil
}
