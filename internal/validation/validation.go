// Package validation cross-checks the three views of an index: the
// per-shard SQLite records (source of truth), the per-shard HNSW
// graphs, and the lexical index. Drift between them means deleted
// chunks still surface in one retrieval path or new chunks are
// invisible in another. The doctor command runs this on demand.
package validation

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
	"github.com/Aman-CERP/semdex/internal/store"
)

// IssueKind classifies one inconsistency.
type IssueKind string

const (
	// IssueGraphMissing: a record exists in SQLite but not in the
	// shard's graph. The chunk is invisible to semantic search.
	IssueGraphMissing IssueKind = "graph_missing"

	// IssueGraphOrphan: the graph holds a key with no backing record.
	// Search hits on it hydrate to nothing.
	IssueGraphOrphan IssueKind = "graph_orphan"

	// IssueLexicalMissing: a record is absent from the lexical index,
	// so keyword search cannot find it.
	IssueLexicalMissing IssueKind = "lexical_missing"

	// IssueLexicalOrphan: the lexical index holds a document no shard
	// knows about, usually a leftover from an interrupted delete.
	IssueLexicalOrphan IssueKind = "lexical_orphan"

	// IssueMisplaced: a record sits in a shard its file does not hash
	// to. Deletes and upserts for the file will miss it.
	IssueMisplaced IssueKind = "misplaced_record"
)

// Issue is one detected inconsistency.
type Issue struct {
	Kind  IssueKind `json:"kind"`
	Shard int       `json:"shard"`
	Key   string    `json:"key"`
}

func (i Issue) String() string {
	if i.Shard < 0 {
		return fmt.Sprintf("%s: %s", i.Kind, i.Key)
	}
	return fmt.Sprintf("%s in shard %d: %s", i.Kind, i.Shard, i.Key)
}

// Report is the outcome of a full consistency run.
type Report struct {
	CheckedAt   time.Time `json:"checked_at"`
	Shards      int       `json:"shards"`
	Records     int       `json:"records"`
	GraphKeys   int       `json:"graph_keys"`
	LexicalDocs int       `json:"lexical_docs"`
	Issues      []Issue   `json:"issues,omitempty"`
}

// Clean reports whether no inconsistencies were found.
func (r *Report) Clean() bool {
	return len(r.Issues) == 0
}

// Run validates st against lex. lex may be nil when lexical search is
// disabled; the lexical checks are skipped.
func Run(ctx context.Context, st *store.ShardedStore, lex store.LexicalIndex) (*Report, error) {
	if st == nil {
		return nil, semerrors.New(semerrors.ErrCodeInvalidInput, "no store to validate", nil)
	}

	report := &Report{
		CheckedAt: time.Now().UTC(),
		Shards:    st.ShardCount(),
	}

	// Union of record keys across shards, for the lexical comparison.
	allRecords := make(map[string]struct{})

	for shardID := 0; shardID < st.ShardCount(); shardID++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		recordKeys, err := st.ShardRecordKeys(ctx, shardID)
		if err != nil {
			return nil, err
		}
		graphKeys, err := st.ShardGraphKeys(shardID)
		if err != nil {
			return nil, err
		}

		report.Records += len(recordKeys)
		report.GraphKeys += len(graphKeys)

		records := make(map[string]struct{}, len(recordKeys))
		for _, key := range recordKeys {
			records[key] = struct{}{}
			allRecords[key] = struct{}{}

			filePath, _, err := store.ParseRecordKey(key)
			if err != nil {
				return nil, err
			}
			if store.ShardFor(filePath, st.ShardCount()) != shardID {
				report.Issues = append(report.Issues, Issue{Kind: IssueMisplaced, Shard: shardID, Key: key})
			}
		}

		inGraph := make(map[string]struct{}, len(graphKeys))
		for _, key := range graphKeys {
			inGraph[key] = struct{}{}
			if _, ok := records[key]; !ok {
				report.Issues = append(report.Issues, Issue{Kind: IssueGraphOrphan, Shard: shardID, Key: key})
			}
		}
		for _, key := range recordKeys {
			if _, ok := inGraph[key]; !ok {
				report.Issues = append(report.Issues, Issue{Kind: IssueGraphMissing, Shard: shardID, Key: key})
			}
		}
	}

	if lex != nil {
		lexIDs, err := lex.AllIDs()
		if err != nil {
			return nil, err
		}
		report.LexicalDocs = len(lexIDs)

		inLexical := make(map[string]struct{}, len(lexIDs))
		for _, id := range lexIDs {
			inLexical[id] = struct{}{}
			if _, ok := allRecords[id]; !ok {
				report.Issues = append(report.Issues, Issue{Kind: IssueLexicalOrphan, Shard: -1, Key: id})
			}
		}
		for key := range allRecords {
			if _, ok := inLexical[key]; !ok {
				report.Issues = append(report.Issues, Issue{Kind: IssueLexicalMissing, Shard: -1, Key: key})
			}
		}
	}

	sortIssues(report.Issues)
	return report, nil
}

// sortIssues orders by kind, shard, key so reports are deterministic.
func sortIssues(issues []Issue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Kind != issues[j].Kind {
			return issues[i].Kind < issues[j].Kind
		}
		if issues[i].Shard != issues[j].Shard {
			return issues[i].Shard < issues[j].Shard
		}
		return issues[i].Key < issues[j].Key
	})
}

// Render writes a human-readable report.
func Render(w io.Writer, r *Report) {
	fmt.Fprintf(w, "index consistency check (%d shards)\n", r.Shards)
	fmt.Fprintf(w, "  records: %d  graph keys: %d  lexical docs: %d\n",
		r.Records, r.GraphKeys, r.LexicalDocs)

	if r.Clean() {
		fmt.Fprintln(w, "  no inconsistencies found")
		return
	}

	fmt.Fprintf(w, "  %d issue(s):\n", len(r.Issues))
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "    - %s\n", issue)
	}
	fmt.Fprintln(w, "  run 'semdex index --force' to rebuild, or 'semdex clear --force' to start over")
}
