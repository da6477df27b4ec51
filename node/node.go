// Package node wires the write path together for one replica: incoming
// messages are schema-validated and verified before their bytes are admitted
// to the block store, and reads resolve the admitted candidates for a record
// to the single authoritative write.
//
// A rejected message never becomes a resolution candidate.
package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"

	"recnode.dev/recnode/auth"
	"recnode.dev/recnode/codec"
	"recnode.dev/recnode/records"
	"recnode.dev/recnode/resolve"
	"recnode.dev/recnode/storage"
)

// Mode controls how ingestion treats descriptor fields this version does
// not know about.
type Mode string

const (
	// ModePermissive admits messages whose descriptors carry unknown fields.
	ModePermissive Mode = "permissive"
	// ModeStrict rejects them.
	ModeStrict Mode = "strict"
)

type Options struct {
	// CAS stores admitted message bytes. Required.
	CAS storage.CAS
	// Identity resolves signing keys during verification. Required.
	Identity auth.IdentityResolver
	// Validator checks descriptor shapes. Required.
	Validator records.SchemaValidator
	// Lookup, when set, is consulted for write permission after the
	// signature verifies.
	Lookup auth.RecordLookup
	// Mode defaults to ModePermissive.
	Mode Mode
}

// Node is one replica's ingestion and resolution surface. Safe for
// concurrent use: admitted messages are immutable and the candidate index is
// the only guarded state.
type Node struct {
	opts Options

	mu sync.RWMutex
	// index maps target/recordId to the block CIDs of admitted messages.
	index map[string][]cid.Cid
}

func New(opts Options) (*Node, error) {
	if opts.CAS == nil {
		return nil, fmt.Errorf("node: missing CAS")
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("node: missing identity resolver")
	}
	if opts.Validator == nil {
		return nil, fmt.Errorf("node: missing schema validator")
	}
	if opts.Mode == "" {
		opts.Mode = ModePermissive
	}
	return &Node{opts: opts, index: make(map[string][]cid.Cid)}, nil
}

func recordKey(target, recordID string) string {
	return target + "/" + recordID
}

// Ingest admits one message: schema validation, then signature verification,
// then canonical encoding into the block store. Returns the block CID of the
// stored message bytes (which is a storage key, not the message's claim CID).
func (n *Node) Ingest(ctx context.Context, msg *records.Message) (cid.Cid, error) {
	if msg == nil {
		return cid.Undef, records.NewError(records.KindValidation, "REC-VAL-303", "nil message")
	}
	shape, err := records.DescriptorShape(msg.Descriptor)
	if err != nil {
		return cid.Undef, err
	}
	if err := n.opts.Validator.Validate(msg.Descriptor.Method, shape); err != nil {
		return cid.Undef, err
	}
	if err := auth.Verify(ctx, msg, n.opts.Identity, n.opts.Lookup); err != nil {
		return cid.Undef, err
	}

	b, err := msg.Encode()
	if err != nil {
		return cid.Undef, err
	}
	id, err := n.opts.CAS.Put(b)
	if err != nil {
		return cid.Undef, err
	}

	key := recordKey(msg.Descriptor.Target, msg.Descriptor.RecordID)
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.index[key] {
		if existing == id {
			return id, nil
		}
	}
	n.index[key] = append(n.index[key], id)
	return id, nil
}

// IngestBytes admits one message from its canonical wire bytes. The wire
// shape must have exactly the three top-level fields descriptor,
// authorization, encodedData; in strict mode, descriptor fields this version
// does not know about are rejected.
func (n *Node) IngestBytes(ctx context.Context, raw []byte) (cid.Cid, error) {
	var generic map[string]any
	if err := codec.Unmarshal(raw, &generic); err != nil {
		return cid.Undef, records.WrapError(records.KindValidation, "REC-VAL-302", "message decoding failed", err)
	}
	for k := range generic {
		switch k {
		case "descriptor", "authorization", "encodedData":
		default:
			return cid.Undef, records.NewError(records.KindValidation, "REC-VAL-304", fmt.Sprintf("unexpected top-level field: %s", k))
		}
	}
	if n.opts.Mode == ModeStrict {
		desc, _ := generic["descriptor"].(map[string]any)
		for k := range desc {
			if !knownDescriptorFields[k] {
				return cid.Undef, records.NewError(records.KindValidation, "REC-VAL-305", fmt.Sprintf("unknown descriptor field: %s", k))
			}
		}
	}
	msg, err := records.DecodeMessage(raw)
	if err != nil {
		return cid.Undef, err
	}
	return n.Ingest(ctx, msg)
}

var knownDescriptorFields = map[string]bool{
	"target": true, "recipient": true, "method": true,
	"protocol": true, "schema": true, "contextId": true,
	"recordId": true, "parentId": true, "nonce": true,
	"dataCid": true, "dateCreated": true,
	"published": true, "datePublished": true, "dataFormat": true,
}

// Candidates returns the admitted messages for a record, in admission order.
func (n *Node) Candidates(target, recordID string) ([]*records.Message, error) {
	n.mu.RLock()
	ids := append([]cid.Cid(nil), n.index[recordKey(target, recordID)]...)
	n.mu.RUnlock()

	out := make([]*records.Message, 0, len(ids))
	for _, id := range ids {
		b, err := n.opts.CAS.Get(id)
		if err != nil {
			return nil, err
		}
		msg, err := records.DecodeMessage(b)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// Newest resolves the authoritative write for a record. The second return is
// false when no message has been admitted for it, which is a defined result,
// not an error.
func (n *Node) Newest(target, recordID string) (*records.Message, bool, error) {
	msgs, err := n.Candidates(target, recordID)
	if err != nil {
		return nil, false, err
	}
	m, ok := resolve.Newest(msgs)
	return m, ok, nil
}
