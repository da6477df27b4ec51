// Package resolve picks the authoritative write among causally-unordered
// messages for the same record.
//
// The comparator is a pure total order: no I/O, no wall clock, no
// randomness. Its output depends only on the multiset of messages supplied,
// never on call order, which is what lets replicas converge on the same
// "current" record state with no coordination.
package resolve

import (
	"strings"

	"recnode.dev/recnode/records"
)

// CompareCreationTime orders two messages for the same record.
//
// Primary key: descriptor.dateCreated as an integer, larger is newer.
// Tie-break: lexicographic byte order of the message CIDs (which exclude
// encodedData), larger is newer. Timestamps are caller-supplied and can
// collide or be adversarially chosen; the CID fallback is a digest over
// every other field, so the final order is unpredictable to an adversary
// who does not also control those fields.
//
// Returns >0 if a is newer, <0 if b is newer, 0 only for identical CIDs.
// The order is total only up to content-identifier collision; a collision
// (treated as impossible in practice) ranks the two messages equal rather
// than producing a nondeterministic result.
func CompareCreationTime(a, b *records.Message) int {
	if a.Descriptor.DateCreated != b.Descriptor.DateCreated {
		if a.Descriptor.DateCreated > b.Descriptor.DateCreated {
			return 1
		}
		return -1
	}
	return strings.Compare(a.CID(), b.CID())
}

// IsNewer reports whether a ranks strictly newer than b.
func IsNewer(a, b *records.Message) bool {
	return CompareCreationTime(a, b) > 0
}

// Newest returns the authoritative message among msgs: the maximum under
// CompareCreationTime. The second return is false for an empty input, which
// is a defined result, not an error. The maximum of a set does not depend
// on enumeration order.
func Newest(msgs []*records.Message) (*records.Message, bool) {
	if len(msgs) == 0 {
		return nil, false
	}
	newest := msgs[0]
	for _, m := range msgs[1:] {
		if IsNewer(m, newest) {
			newest = m
		}
	}
	return newest, true
}
