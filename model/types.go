package model

import (
	"errors"

	"recnode.dev/recnode/records"
)

// WriteRequest carries everything needed to build one record write.
// Payload bytes are encoded as base64 by encoding/json.
type WriteRequest struct {
	Target        string `json:"target"`
	Recipient     string `json:"recipient"`
	Protocol      string `json:"protocol,omitempty"`
	Schema        string `json:"schema,omitempty"`
	ContextID     string `json:"contextId,omitempty"`
	RecordID      string `json:"recordId"`
	ParentID      string `json:"parentId,omitempty"`
	Nonce         string `json:"nonce"`
	DateCreated   int64  `json:"dateCreated"`
	Published     *bool  `json:"published,omitempty"`
	DatePublished *int64 `json:"datePublished,omitempty"`
	DataFormat    string `json:"dataFormat"`
	Data          []byte `json:"data"`
}

// WriteResponse reports a constructed or admitted write.
type WriteResponse struct {
	Message  records.Message `json:"message"`
	CID      string          `json:"cid"`
	BlockCID string          `json:"blockCid,omitempty"`
}

// NewestResponse reports the resolved authoritative write for a record.
type NewestResponse struct {
	Found   bool             `json:"found"`
	Message *records.Message `json:"message,omitempty"`
	CID     string           `json:"cid,omitempty"`
}

// FromError projects a library error onto the stable boundary taxonomy.
func FromError(err error) *CodedError {
	if err == nil {
		return nil
	}
	var re *records.Error
	if errors.As(err, &re) {
		switch re.Kind {
		case records.KindValidation:
			return NewError(ErrValidation, re.Message)
		case records.KindSigning:
			return NewError(ErrSigning, re.Message)
		case records.KindAuthorization:
			return NewError(ErrAuthorization, re.Message)
		case records.KindAddressing:
			return NewError(ErrAddressing, re.Message)
		}
	}
	return NewError(ErrInternal, err.Error())
}
