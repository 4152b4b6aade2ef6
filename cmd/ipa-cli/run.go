package main

import (
	"bytes"
	gocontext "context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/query"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/aggregate"
)

// bucketShare is one helper's (left, right) component of one histogram
// bucket, hex-encoded for JSON persistence.
type bucketShare struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// queryState is what start-query persists to <state-dir>/<query-id>.json
// and what status/result read back.
type queryState struct {
	QueryID   string           `json:"query_id"`
	Status    string           `json:"status"` // "completed" or "failed"
	Error     string           `json:"error,omitempty"`
	Histogram [][3]bucketShare `json:"histogram,omitempty"`
}

func statePath(id string) string {
	return filepath.Join(configDir, id+".json")
}

func writeState(st *queryState) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return ipaerr.New(ipaerr.Serialization, err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return ipaerr.New(ipaerr.Serialization, err)
	}
	if err := ioutil.WriteFile(statePath(st.QueryID), data, 0644); err != nil {
		return ipaerr.New(ipaerr.Serialization, err)
	}
	return nil
}

func readState(id string) (*queryState, error) {
	data, err := ioutil.ReadFile(statePath(id))
	if err != nil {
		return nil, fmt.Errorf("no state for query %q: %w", id, err)
	}
	var st queryState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, ipaerr.New(ipaerr.Serialization, err)
	}
	return &st, nil
}

// runStartQuery loads each helper's input stream and a shared
// IpaQueryConfig, runs the three-helper pipeline in-process (there is no
// wire transport in this tree, so this is a local simulation harness),
// and persists the
// resulting histogram shares.
func runStartQuery(cmd *cobra.Command, args []string) error {
	cfgData, err := ioutil.ReadFile(configPath)
	if err != nil {
		return ipaerr.New(ipaerr.Serialization, fmt.Errorf("reading config: %w", err))
	}
	var cfg query.IpaQueryConfig
	if err := json.Unmarshal(cfgData, &cfg); err != nil {
		return ipaerr.New(ipaerr.Serialization, fmt.Errorf("parsing config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var inputs [3][]byte
	for i, name := range []string{"h1.bin", "h2.bin", "h3.bin"} {
		data, err := ioutil.ReadFile(filepath.Join(inputDir, name))
		if err != nil {
			return ipaerr.New(ipaerr.Serialization, fmt.Errorf("reading %s: %w", name, err))
		}
		inputs[i] = data
	}

	ctxs, err := context.NewTrio(rand.Reader)
	if err != nil {
		return err
	}

	type res struct {
		i    int
		hist []*share.Share
		err  error
	}
	out := make(chan res, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			hist, err := query.Execute(gocontext.Background(), ctxs[i], cfg, bytes.NewReader(inputs[i]), querySize)
			out <- res{i: i, hist: hist, err: err}
		}()
	}
	var results [3][]*share.Share
	var firstErr error
	for n := 0; n < 3; n++ {
		r := <-out
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		results[r.i] = r.hist
	}

	if firstErr != nil {
		writeState(&queryState{QueryID: queryID, Status: "failed", Error: firstErr.Error()})
		return firstErr
	}

	n := len(results[0])
	histogram := make([][3]bucketShare, n)
	for b := 0; b < n; b++ {
		for h := 0; h < 3; h++ {
			histogram[b][h] = bucketShare{
				Left:  hex.EncodeToString(results[h][b].Left().Serialize()),
				Right: hex.EncodeToString(results[h][b].Right().Serialize()),
			}
		}
	}
	if err := writeState(&queryState{QueryID: queryID, Status: "completed", Histogram: histogram}); err != nil {
		return err
	}

	fmt.Printf("Query %s completed: %d buckets\n", queryID, n)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := readState(queryID)
	if err != nil {
		return err
	}
	if st.Status == "failed" {
		fmt.Printf("query %s: failed (%s)\n", st.QueryID, st.Error)
		return nil
	}
	fmt.Printf("query %s: %s\n", st.QueryID, st.Status)
	return nil
}

func runResult(cmd *cobra.Command, args []string) error {
	st, err := readState(queryID)
	if err != nil {
		return err
	}
	if st.Status != "completed" {
		return ipaerr.Errorf(ipaerr.Inconsistent, "query %s has not completed (status=%s)", st.QueryID, st.Status)
	}

	f := aggregate.Field
	for b, bucket := range st.Histogram {
		if resultFmt == "decimal" {
			v, err := reconstructBucket(f, bucket)
			if err != nil {
				return err
			}
			var n uint64
			for i, c := range v.Serialize() {
				n |= uint64(c) << (8 * uint(i))
			}
			fmt.Printf("bucket %d: %d\n", b, n)
			continue
		}
		fmt.Printf("bucket %d: H1(%s,%s) H2(%s,%s) H3(%s,%s)\n", b,
			bucket[0].Left, bucket[0].Right,
			bucket[1].Left, bucket[1].Right,
			bucket[2].Left, bucket[2].Right)
	}
	return nil
}

func reconstructBucket(f field.Field, bucket [3]bucketShare) (field.Element, error) {
	var shares [3]*share.Share
	for h, b := range bucket {
		left, err := decodeElement(f, b.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeElement(f, b.Right)
		if err != nil {
			return nil, err
		}
		s, err := share.New(left, right)
		if err != nil {
			return nil, err
		}
		shares[h] = s
	}
	return share.Reconstruct(shares)
}

func decodeElement(f field.Field, s string) (field.Element, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, ipaerr.New(ipaerr.Serialization, err)
	}
	return f.Deserialize(data)
}

// exitCodeFor maps an ipaerr.Kind to the exit codes spec's CLI surface
// names: 2 for a config/input problem caught before or during execution,
// 3 for a transport-level failure, 1 for anything else (including a
// fatal protocol-level disagreement like ShuffleValidationFailed or
// Inconsistent, which is neither a validation nor a transport error).
func exitCodeFor(err error) int {
	switch {
	case ipaerr.Of(err, ipaerr.InvalidConfig), ipaerr.Of(err, ipaerr.Serialization),
		ipaerr.Of(err, ipaerr.DuplicateRecord), ipaerr.Of(err, ipaerr.OutOfBounds):
		return 2
	case ipaerr.Of(err, ipaerr.Network), ipaerr.Of(err, ipaerr.Canceled):
		return 3
	default:
		return 1
	}
}
