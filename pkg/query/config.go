// Package query wires the protocol primitives (shuffle, convert, oprf,
// attribution, aggregate) into the end-to-end OPRF IPA pipeline a single
// helper runs for one query: parse input → shuffle → pseudonymize → sort
// by pseudonym → attribute → cap → aggregate → output. The sort is a local
// stable sort over the revealed pseudonyms; protocols/sort is not used.
package query

import (
	"math/bits"

	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/report"
)

// capToTriggerValueBits is the per_user_credit_cap dispatch table: the
// capped trigger value is represented in ceil(log2(cap)) bits, grounded
// directly on the original's match on config.per_user_credit_cap.
var capToTriggerValueBits = map[uint32]int{
	8:   3,
	16:  4,
	32:  5,
	64:  6,
	128: 7,
}

// TimestampBits is the fixed width of every report's timestamp field,
// independent of per_user_credit_cap or max_breakdown_key.
const TimestampBits = 20

// IpaQueryConfig describes one query's shape: the capping and
// breakdown-key parameters the input stream and aggregation output are
// sized against.
type IpaQueryConfig struct {
	PerUserCreditCap         uint32
	MaxBreakdownKey          uint32
	NumMultiBits             uint32
	AttributionWindowSeconds uint32
	PlaintextMatchKeys       bool
}

// Validate checks the four constraints spec.md's query config section
// names: per_user_credit_cap is one of the five supported caps,
// max_breakdown_key is a power of two, num_multi_bits is in 1..=8, and
// plaintext_match_keys is set (HPKE report decryption is out of scope, so
// the encrypted-match-key path this config would otherwise select is
// unsupported here).
func (c IpaQueryConfig) Validate() error {
	if _, ok := capToTriggerValueBits[c.PerUserCreditCap]; !ok {
		return ipaerr.Errorf(ipaerr.InvalidConfig, "query: per_user_credit_cap %d is not one of {8,16,32,64,128}", c.PerUserCreditCap)
	}
	if c.MaxBreakdownKey == 0 || c.MaxBreakdownKey&(c.MaxBreakdownKey-1) != 0 {
		return ipaerr.Errorf(ipaerr.InvalidConfig, "query: max_breakdown_key %d is not a power of two", c.MaxBreakdownKey)
	}
	if c.NumMultiBits < 1 || c.NumMultiBits > 8 {
		return ipaerr.Errorf(ipaerr.InvalidConfig, "query: num_multi_bits %d outside 1..=8", c.NumMultiBits)
	}
	if !c.PlaintextMatchKeys {
		return ipaerr.Errorf(ipaerr.InvalidConfig, "query: encrypted match keys need HPKE report decryption, which is out of scope")
	}
	return nil
}

// TriggerValueBits returns the capped trigger-value bit width selected by
// PerUserCreditCap. Callers must Validate first.
func (c IpaQueryConfig) TriggerValueBits() int {
	return capToTriggerValueBits[c.PerUserCreditCap]
}

// BreakdownKeyBits returns the number of bits needed to represent any
// breakdown key in [0, MaxBreakdownKey).
func (c IpaQueryConfig) BreakdownKeyBits() int {
	return bits.Len32(c.MaxBreakdownKey - 1)
}

// Widths returns the report.Widths this config implies for parsing the
// input stream.
func (c IpaQueryConfig) Widths() report.Widths {
	return report.Widths{
		BreakdownKeyBits: c.BreakdownKeyBits(),
		TriggerValueBits: c.TriggerValueBits(),
		TimestampBits:    TimestampBits,
	}
}
