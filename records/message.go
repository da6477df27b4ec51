package records

import (
	"encoding/base64"

	"recnode.dev/recnode/cidutil"
	"recnode.dev/recnode/codec"
)

// MethodRecordsWrite tags a message as a record write. It is the only method
// this repo implements; the schema registry is keyed by method so other
// message types can register their own shapes.
const MethodRecordsWrite = "RecordsWrite"

// Descriptor is the immutable metadata block of one record write. It is
// created once, at write time, and never mutated afterward.
//
// Optional fields use pointer or omitempty encoding so an unset field is
// absent from the canonical form by construction: a present-but-null field
// and an absent field are indistinguishable and both forbidden.
//
// DateCreated is caller-supplied and trusted only as an ordering hint, not
// as ground truth; ties are broken by message CID (see package resolve).
type Descriptor struct {
	Target        string `json:"target"`
	Recipient     string `json:"recipient"`
	Method        string `json:"method"`
	Protocol      string `json:"protocol,omitempty"`
	Schema        string `json:"schema,omitempty"`
	ContextID     string `json:"contextId,omitempty"`
	RecordID      string `json:"recordId"`
	ParentID      string `json:"parentId,omitempty"`
	Nonce         string `json:"nonce"`
	DataCID       string `json:"dataCid"`
	DateCreated   int64  `json:"dateCreated"`
	Published     *bool  `json:"published,omitempty"`
	DatePublished *int64 `json:"datePublished,omitempty"`
	DataFormat    string `json:"dataFormat"`
}

// Authorization is the envelope produced by signing a descriptor. Its
// contents are opaque to this package; package auth produces and consumes
// it. It participates in the message CID, so two messages differing only in
// their signatures are distinct writes.
type Authorization struct {
	KeyID        string `json:"keyId"`
	SignatureAlg string `json:"signatureAlg"`
	HashAlg      string `json:"hashAlg"`
	Signature    string `json:"signature"`
}

// Message is one signed record write. Immutable once assembled; no component
// mutates a Message in place. EncodedData is the base64url (unpadded)
// encoding of the raw payload bytes.
type Message struct {
	Descriptor    Descriptor    `json:"descriptor"`
	Authorization Authorization `json:"authorization"`
	EncodedData   string        `json:"encodedData,omitempty"`
}

// claim is the content-addressed view of a Message: EncodedData is excluded
// because the CID identifies the authenticated claim, not the wire framing
// of the payload carried alongside it.
type claim struct {
	Descriptor    Descriptor    `json:"descriptor"`
	Authorization Authorization `json:"authorization"`
}

// signScope is the exact byte scope covered by the authorization signature:
// {descriptor} and nothing else.
type signScope struct {
	Descriptor Descriptor `json:"descriptor"`
}

// SignedBytes returns the canonical bytes the authorization signature
// covers: the canonical CBOR encoding of {descriptor}.
func (d Descriptor) SignedBytes() ([]byte, error) {
	b, err := codec.Marshal(signScope{Descriptor: d})
	if err != nil {
		return nil, WrapError(KindAddressing, "REC-CID-201", "descriptor canonical encoding failed", err)
	}
	return b, nil
}

// CID returns the message content identifier: CIDv1 (dag-cbor + sha2-256)
// over the canonical encoding of {descriptor, authorization}, excluding
// EncodedData.
//
// Canonical CBOR encoding of a struct of basic types cannot fail; on the
// unreachable encoder error this returns "".
func (m *Message) CID() string {
	id, err := cidutil.CIDv1DagCBORSHA256(claim{Descriptor: m.Descriptor, Authorization: m.Authorization})
	if err != nil {
		return ""
	}
	return id.String()
}

// Data decodes EncodedData back into the raw payload bytes.
func (m *Message) Data() ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(m.EncodedData)
	if err != nil {
		return nil, WrapError(KindValidation, "REC-VAL-301", "encodedData is not valid base64url", err)
	}
	return b, nil
}

// Encode returns the canonical CBOR wire form of the full message:
// exactly the three top-level fields descriptor, authorization, encodedData.
func (m *Message) Encode() ([]byte, error) {
	b, err := codec.Marshal(m)
	if err != nil {
		return nil, WrapError(KindAddressing, "REC-CID-202", "message canonical encoding failed", err)
	}
	return b, nil
}

// DecodeMessage parses canonical CBOR message bytes.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := codec.Unmarshal(data, &m); err != nil {
		return nil, WrapError(KindValidation, "REC-VAL-302", "message decoding failed", err)
	}
	return &m, nil
}
