package records

import (
	"context"
	"encoding/base64"

	"recnode.dev/recnode/cidutil"
	"recnode.dev/recnode/codec"
)

// Signer produces an authorization envelope over the canonical signed bytes
// of a descriptor. Implementations live outside this package (see package
// auth); signing is the only point of NewWrite that may perform external I/O
// such as a key lookup, so it takes a context.
type Signer interface {
	Sign(ctx context.Context, payload []byte) (Authorization, error)
}

// SchemaValidator checks a descriptor shape against the schema registered
// for a method tag. The standard implementation is package schema.
type SchemaValidator interface {
	Validate(method string, shape map[string]any) error
}

// WriteOptions supplies every descriptor field except dataCid, which is
// computed, plus the raw payload bytes and the collaborators the builder
// invokes. Optional descriptor fields left at their zero value are omitted
// from the canonical form entirely.
type WriteOptions struct {
	Target    string
	Recipient string

	Protocol  string
	Schema    string
	ContextID string
	ParentID  string

	RecordID      string
	Nonce         string
	DateCreated   int64
	Published     *bool
	DatePublished *int64
	DataFormat    string

	Data []byte

	Signer    Signer
	Validator SchemaValidator
}

// NewWrite constructs a signed record write.
//
// Steps are strictly sequential and there is no partial observable state:
// callers either get a fully formed immutable Message or an error.
//
//  1. compute dataCid from the raw payload,
//  2. assemble the descriptor (unset optionals never serialize, by
//     construction),
//  3. validate the descriptor shape against the schema for its method,
//  4. encode the payload as base64url,
//  5. sign exactly {descriptor},
//  6. return the finished Message.
func NewWrite(ctx context.Context, opts WriteOptions) (*Message, error) {
	if opts.Signer == nil {
		return nil, NewError(KindSigning, "REC-SIGN-001", "missing signer")
	}
	if opts.Validator == nil {
		return nil, NewError(KindInternal, "REC-INTERNAL-002", "missing schema validator")
	}

	dataCID := cidutil.CIDv1RawSHA256(opts.Data)
	if dataCID == "" {
		return nil, NewError(KindAddressing, "REC-CID-101", "payload addressing failed")
	}

	desc := Descriptor{
		Target:        opts.Target,
		Recipient:     opts.Recipient,
		Method:        MethodRecordsWrite,
		Protocol:      opts.Protocol,
		Schema:        opts.Schema,
		ContextID:     opts.ContextID,
		RecordID:      opts.RecordID,
		ParentID:      opts.ParentID,
		Nonce:         opts.Nonce,
		DataCID:       dataCID,
		DateCreated:   opts.DateCreated,
		Published:     opts.Published,
		DatePublished: opts.DatePublished,
		DataFormat:    opts.DataFormat,
	}

	shape, err := DescriptorShape(desc)
	if err != nil {
		return nil, err
	}
	if err := opts.Validator.Validate(desc.Method, shape); err != nil {
		return nil, err
	}

	encodedData := base64.RawURLEncoding.EncodeToString(opts.Data)

	signed, err := desc.SignedBytes()
	if err != nil {
		return nil, err
	}
	authz, err := opts.Signer.Sign(ctx, signed)
	if err != nil {
		if IsKind(err, KindSigning) {
			return nil, err
		}
		return nil, WrapError(KindSigning, "REC-SIGN-002", "descriptor signing failed", err)
	}

	return &Message{Descriptor: desc, Authorization: authz, EncodedData: encodedData}, nil
}

// DescriptorShape returns the generic canonical shape of a descriptor: its
// canonical CBOR encoding decoded back into a string-keyed map, with absent
// values pruned. Schema validation and strict-mode checks operate on this
// shape rather than on the struct, so they also apply to externally received
// descriptors.
func DescriptorShape(d Descriptor) (map[string]any, error) {
	b, err := codec.Marshal(d)
	if err != nil {
		return nil, WrapError(KindAddressing, "REC-CID-203", "descriptor canonical encoding failed", err)
	}
	var shape map[string]any
	if err := codec.Unmarshal(b, &shape); err != nil {
		return nil, WrapError(KindInternal, "REC-INTERNAL-003", "descriptor shape decoding failed", err)
	}
	return codec.Prune(shape), nil
}
