// Package report parses the per-helper input stream for an IPA query: a
// length-prefixed sequence of Report rows, each a tuple of replicated
// boolean-array shares. No original_source file specifies this wire
// format directly (see DESIGN.md); it is derived from the field list and
// widths spec.md's data model and query config give directly.
package report

import (
	"encoding/binary"
	"io"

	"github.com/luxfi/ipa/pkg/boolean"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/share"
)

// MatchKeyBits is the fixed width of every report's match key, regardless
// of query config.
const MatchKeyBits = 64

// IsTriggerBits is the fixed width of the trigger-row flag.
const IsTriggerBits = 1

// Widths carries the query-config-dependent field widths needed to parse
// a row: breakdown key, trigger value and timestamp are all sized per
// IpaQueryConfig rather than fixed like match_key and is_trigger.
type Widths struct {
	BreakdownKeyBits int
	TriggerValueBits int
	TimestampBits    int
}

// Report is one parsed input row: replicated shares of a match key, the
// trigger/source flag, a breakdown key, a trigger value, and a timestamp.
type Report struct {
	MatchKey     *share.BAShare
	IsTrigger    *share.BAShare
	BreakdownKey *share.BAShare
	TriggerValue *share.BAShare
	Timestamp    *share.BAShare
}

// readBAShare reads one field's replicated encoding: the left component's
// bytes immediately followed by the right component's, each byteLen(bits)
// bytes wide.
func readBAShare(r io.Reader, bits int) (*share.BAShare, error) {
	byteLen := (bits + 7) / 8
	buf := make([]byte, 2*byteLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ipaerr.Errorf(ipaerr.Serialization, "report: reading BA%d share: %v", bits, err)
	}
	left, err := boolean.FromBytes(bits, buf[:byteLen])
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.Serialization, "report: %v", err)
	}
	right, err := boolean.FromBytes(bits, buf[byteLen:])
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.Serialization, "report: %v", err)
	}
	return share.NewBA(left, right)
}

// ParseRow reads one Report's fields in match_key, is_trigger,
// breakdown_key, trigger_value, timestamp order.
func ParseRow(r io.Reader, w Widths) (*Report, error) {
	matchKey, err := readBAShare(r, MatchKeyBits)
	if err != nil {
		return nil, err
	}
	isTrigger, err := readBAShare(r, IsTriggerBits)
	if err != nil {
		return nil, err
	}
	breakdownKey, err := readBAShare(r, w.BreakdownKeyBits)
	if err != nil {
		return nil, err
	}
	triggerValue, err := readBAShare(r, w.TriggerValueBits)
	if err != nil {
		return nil, err
	}
	timestamp, err := readBAShare(r, w.TimestampBits)
	if err != nil {
		return nil, err
	}
	return &Report{
		MatchKey:     matchKey,
		IsTrigger:    isTrigger,
		BreakdownKey: breakdownKey,
		TriggerValue: triggerValue,
		Timestamp:    timestamp,
	}, nil
}

// ParseStream reads a u32-LE row count followed by that many Report rows,
// the length-prefixed framing spec.md's external interfaces section
// describes for the query input stream.
func ParseStream(r io.Reader, w Widths) ([]*Report, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, ipaerr.Errorf(ipaerr.Serialization, "report: reading row count: %v", err)
	}
	count := binary.LittleEndian.Uint32(countBuf[:])

	rows := make([]*Report, count)
	for i := range rows {
		row, err := ParseRow(r, w)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}
