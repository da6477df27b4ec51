package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable block store. Replicas persist both
// payload bytes and encoded messages as opaque blocks keyed by CIDv1
// (raw + sha2-256); a message's protocol identity (its claim CID, which
// excludes encodedData) is distinct from its storage key.
//
// Contract:
// - Put MUST be idempotent.
// - Stored blocks MUST be immutable.
// - CIDs MUST be derived from the bytes written.
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
