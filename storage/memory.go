package storage

import (
	"sync"

	"github.com/ipfs/go-cid"

	"recnode.dev/recnode/cidutil"
)

// MemCAS is an in-memory CAS, safe for concurrent use. Used by tests and as
// the default backend of an ephemeral node.
type MemCAS struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

var _ CAS = (*MemCAS)(nil)

func NewMemCAS() *MemCAS {
	return &MemCAS{blocks: make(map[cid.Cid][]byte)}
}

func (m *MemCAS) Put(bytes []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, ErrInvalidCID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[id]; !ok {
		m.blocks[id] = append([]byte(nil), bytes...)
	}
	return id, nil
}

func (m *MemCAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemCAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[id]
	return ok
}
