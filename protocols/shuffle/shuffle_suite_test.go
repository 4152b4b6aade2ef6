package shuffle_test

import (
	"context"
	"crypto/rand"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ipactx "github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/boolean"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/shuffle"
)

func TestShuffle(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Shuffle Verification Suite")
}

// splitRowBDD draws a random 3-way XOR sharing of v, returning it in
// (a, b, c) order as splitRow does in shuffle_test.go, but surfacing
// errors through Gomega's synchronized fail handler instead of a
// *testing.T so it can run from within It blocks.
func splitRowBDD(v *boolean.BA) (a, b, c *boolean.BA) {
	buf := make([]byte, len(v.Bytes()))

	_, err := rand.Read(buf)
	Expect(err).NotTo(HaveOccurred())
	a, err = boolean.FromBytes(v.Bits(), buf)
	Expect(err).NotTo(HaveOccurred())

	_, err = rand.Read(buf)
	Expect(err).NotTo(HaveOccurred())
	b, err = boolean.FromBytes(v.Bits(), buf)
	Expect(err).NotTo(HaveOccurred())

	ab, err := a.Xor(b)
	Expect(err).NotTo(HaveOccurred())
	c, err = ab.Xor(v)
	Expect(err).NotTo(HaveOccurred())
	return a, b, c
}

func buildTrioInputsBDD(rows []*boolean.BA) [3]helperInputs {
	var out [3]helperInputs
	for i := range out {
		out[i].left = make([]*boolean.BA, len(rows))
		out[i].right = make([]*boolean.BA, len(rows))
	}
	for i, row := range rows {
		a, b, c := splitRowBDD(row)
		out[party.H1.Index()].left[i], out[party.H1.Index()].right[i] = a, b
		out[party.H2.Index()].left[i], out[party.H2.Index()].right[i] = b, c
		out[party.H3.Index()].left[i], out[party.H3.Index()].right[i] = c, a
	}
	return out
}

func runShuffleTrioBDD(ctxs [3]*ipactx.Context, inputs [3]helperInputs) [3]shuffleResult {
	return runShuffleTrio(ctxs, inputs, testBits)
}

// tagTrioRowsBDD mirrors tagTrioRows, surfacing failures through Gomega.
func tagTrioRowsBDD(ctxs [3]*ipactx.Context, inputs [3]helperInputs, numLimbs int) [3]helperInputs {
	type res struct {
		i    int
		rows []*share.BAShare
		err  error
	}
	out := make(chan res, 3)
	for idx := 0; idx < 3; idx++ {
		idx := idx
		go func() {
			role := party.All()[idx]
			keys := trivialMACKeys(role, numLimbs)
			rows := make([]*share.BAShare, len(inputs[idx].left))
			for i := range rows {
				row, err := share.NewBA(inputs[idx].left[i], inputs[idx].right[i])
				if err != nil {
					out <- res{i: idx, err: err}
					return
				}
				rows[i] = row
			}
			extended, err := shuffle.ComputeAndAddTags(context.Background(), ctxs[idx], keys, rows)
			out <- res{i: idx, rows: extended, err: err}
		}()
	}
	var tagged [3][]*share.BAShare
	for n := 0; n < 3; n++ {
		r := <-out
		Expect(r.err).NotTo(HaveOccurred())
		tagged[r.i] = r.rows
	}
	var result [3]helperInputs
	for idx := 0; idx < 3; idx++ {
		result[idx].left = make([]*boolean.BA, len(tagged[idx]))
		result[idx].right = make([]*boolean.BA, len(tagged[idx]))
		for i, row := range tagged[idx] {
			result[idx].left[i] = row.Left()
			result[idx].right[i] = row.Right()
		}
	}
	return result
}

var _ = Describe("Shuffle", func() {
	var ctxs [3]*ipactx.Context

	BeforeEach(func() {
		var err error
		ctxs, err = ipactx.NewTrio(rand.Reader)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("when run on honest replicated input", func() {
		It("preserves the multiset of rows while changing their order", func() {
			plain := []*boolean.BA{
				boolean.FromUint64(testBits, 1),
				boolean.FromUint64(testBits, 2),
				boolean.FromUint64(testBits, 3),
				boolean.FromUint64(testBits, 4),
				boolean.FromUint64(testBits, 5),
			}
			inputs := buildTrioInputsBDD(plain)

			results := runShuffleTrioBDD(ctxs, inputs)
			for _, r := range results {
				Expect(r.err).NotTo(HaveOccurred())
			}

			got := reconstructRowsBDD(results, len(plain))
			Expect(byteSet(got)).To(Equal(byteSet(plain)))
		})

		It("passes VerifyShuffle for all three helpers", func() {
			plain := []*boolean.BA{
				boolean.FromUint64(testBits, 10),
				boolean.FromUint64(testBits, 20),
				boolean.FromUint64(testBits, 30),
			}
			inputs := buildTrioInputsBDD(plain)
			numLimbs := len(plain[0].ToGf32Bit())
			tagged := tagTrioRowsBDD(ctxs, inputs, numLimbs)

			results, msgs := runShuffleTrioWithMessages(ctxs, tagged, testBits+32)
			for _, r := range results {
				Expect(r.err).NotTo(HaveOccurred())
			}

			errs := make(chan error, 3)
			for i := 0; i < 3; i++ {
				i := i
				go func() {
					keys := trivialMACKeys(party.All()[i], numLimbs)
					errs <- shuffle.VerifyShuffle(context.Background(), ctxs[i], keys, results[i].left, results[i].right, msgs[i], testBits)
				}()
			}
			for n := 0; n < 3; n++ {
				Expect(<-errs).NotTo(HaveOccurred())
			}
		})
	})

	Context("when a helper tampers with its copy of a row", func() {
		It("is caught by the peer holding the other copy, as ShuffleValidationFailed", func() {
			plain := []*boolean.BA{
				boolean.FromUint64(testBits, 100),
				boolean.FromUint64(testBits, 200),
			}
			inputs := buildTrioInputsBDD(plain)
			numLimbs := len(plain[0].ToGf32Bit())
			tagged := tagTrioRowsBDD(ctxs, inputs, numLimbs)

			extendedBits := testBits + 32
			results, msgs := runShuffleTrioWithMessages(ctxs, tagged, extendedBits)
			for _, r := range results {
				Expect(r.err).NotTo(HaveOccurred())
			}

			tampered := results[party.H1.Index()].left[0]
			results[party.H1.Index()].left[0] = boolean.FromUint64(extendedBits, tampered.AsUint64()^1)

			type indexed struct {
				i   int
				err error
			}
			out := make(chan indexed, 3)
			for i := 0; i < 3; i++ {
				i := i
				go func() {
					keys := trivialMACKeys(party.All()[i], numLimbs)
					out <- indexed{i, shuffle.VerifyShuffle(context.Background(), ctxs[i], keys, results[i].left, results[i].right, msgs[i], testBits)}
				}()
			}
			var got [3]error
			for n := 0; n < 3; n++ {
				r := <-out
				got[r.i] = r.err
			}

			Expect(got[party.H3.Index()]).To(HaveOccurred())
			Expect(ipaerr.Of(got[party.H3.Index()], ipaerr.ShuffleValidationFailed)).To(BeTrue())
		})
	})
})

func reconstructRowsBDD(results [3]shuffleResult, n int) []*boolean.BA {
	h1, h2 := results[party.H1.Index()], results[party.H2.Index()]
	out := make([]*boolean.BA, n)
	for i := 0; i < n; i++ {
		v, err := h1.left[i].Xor(h1.right[i])
		Expect(err).NotTo(HaveOccurred())
		v, err = v.Xor(h2.right[i])
		Expect(err).NotTo(HaveOccurred())
		out[i] = v
	}
	return out
}
