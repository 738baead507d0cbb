// Package researcher executes a plan's sub-queries against the search
// provider and ingests the results into the evidence store.
package researcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saptiva-ai/alethia-deepresearch/internal/extract"
	"github.com/saptiva-ai/alethia-deepresearch/internal/guard"
	"github.com/saptiva-ai/alethia-deepresearch/internal/search"
	"github.com/saptiva-ai/alethia-deepresearch/internal/telemetry"
	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
	"github.com/saptiva-ai/alethia-deepresearch/internal/vector"
)

// Researcher fans a plan out to the search provider, screens candidates
// through the guard, and stores what survives deduplication.
type Researcher struct {
	search     search.Searcher
	store      vector.Store
	guard      guard.Guard
	extractor  extract.Extractor
	workers    int
	maxResults int
}

// New creates a Researcher. workers bounds the concurrent sub-query fan-out;
// maxResults is the per-search result cap.
func New(s search.Searcher, store vector.Store, g guard.Guard, ex extract.Extractor, workers, maxResults int) *Researcher {
	if workers <= 0 {
		workers = 5
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Researcher{search: s, store: store, guard: g, extractor: ex, workers: workers, maxResults: maxResults}
}

// Outcome summarises one research pass.
type Outcome struct {
	Evidence   []types.Evidence // accepted items, in deterministic merge order
	Executed   []string         // sub-query texts, in plan order
	Failed     []string         // sub-query IDs where every source failed
	Duplicates int
	Guarded    int
}

// candidates holds the raw search output for one sub-query, per source kind
// in the sub-query's declared order.
type candidates struct {
	perKind map[types.SourceKind][]search.Result
	failed  bool
}

// Execute runs every sub-query of plan against collection. Searches run
// concurrently, bounded by the worker limit; a failed sub-query is recorded
// and never cancels its peers. Ingestion then happens serially in plan
// order, so the accepted evidence and the dedupe winners are deterministic
// for a given provider output.
//
// Expectations:
//   - Outcome.Evidence is ordered by (plan index, source order, rank)
//   - an item whose ID or content hash was stored before is counted as a
//     duplicate, not returned
//   - citation keys continue from citStart: S<citStart+1>, S<citStart+2>, ...
func (r *Researcher) Execute(ctx context.Context, collection string, plan types.Plan, citStart int, docs []string) (Outcome, error) {
	if err := r.store.Ensure(ctx, collection); err != nil {
		return Outcome{}, fmt.Errorf("researcher: ensure collection: %w", err)
	}

	gathered := make([]candidates, len(plan.SubQueries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, sq := range plan.SubQueries {
		g.Go(func() error {
			gathered[i] = r.gather(gctx, sq)
			return nil
		})
	}
	// Workers never return errors; Wait only surfaces context cancellation.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	var out Outcome
	cit := citStart
	for i, sq := range plan.SubQueries {
		out.Executed = append(out.Executed, sq.Text)
		if gathered[i].failed {
			out.Failed = append(out.Failed, sq.ID)
			continue
		}
		for _, kind := range sq.Sources {
			for ordinal, res := range gathered[i].perKind[kind] {
				ev, ok := r.ingest(ctx, collection, sq, kind, ordinal, res, cit+1, &out)
				if !ok {
					continue
				}
				cit++
				out.Evidence = append(out.Evidence, ev)
			}
		}
	}

	if len(docs) > 0 {
		r.ingestDocuments(ctx, collection, plan, docs, &cit, &out)
	}

	log.Printf("[RESEARCHER] pass done accepted=%d duplicates=%d guarded=%d failed_queries=%d",
		len(out.Evidence), out.Duplicates, out.Guarded, len(out.Failed))
	return out, nil
}

// gather runs the searches for one sub-query. All sources failing marks the
// sub-query failed; a partial failure keeps what succeeded.
func (r *Researcher) gather(ctx context.Context, sq types.SubQuery) candidates {
	c := candidates{perKind: make(map[types.SourceKind][]search.Result)}
	attempted, failures := 0, 0
	for _, kind := range sq.Sources {
		if kind == types.SourceDocument {
			continue // documents are ingested from the configured set, not searched
		}
		attempted++
		results, err := search.ForSource(ctx, r.search, string(kind), sq.Text, r.maxResults)
		if err != nil {
			failures++
			telemetry.SearchFailuresTotal.Inc()
			log.Printf("[RESEARCHER] WARNING: search failed sub_query=%s kind=%s: %v", sq.ID, kind, err)
			continue
		}
		c.perKind[kind] = results
	}
	c.failed = attempted > 0 && failures == attempted
	return c
}

// ingest screens one candidate and stores it. Returns the evidence and true
// only when the store accepted it as new. citNext is the citation number the
// item gets if accepted.
func (r *Researcher) ingest(ctx context.Context, collection string, sq types.SubQuery, kind types.SourceKind, ordinal int, res search.Result, citNext int, out *Outcome) (types.Evidence, bool) {
	// Local documents carry file:// URLs; the URL screen applies to fetched
	// sources only.
	if kind != types.SourceDocument && !r.guard.AllowURL(res.URL) {
		out.Guarded++
		telemetry.EvidenceTotal.WithLabelValues("guarded").Inc()
		return types.Evidence{}, false
	}

	excerpt := types.CapExcerpt(r.guard.SanitizeText(res.Content))
	ev := types.Evidence{
		ID:          types.EvidenceID(kind, res.URL, sq.ID, ordinal),
		Excerpt:     excerpt,
		ContentHash: types.HashContent(excerpt),
		Score:       res.Score,
		Tags:        []string{string(kind), sq.ID},
		CitKey:      fmt.Sprintf("S%d", citNext),
		ProducedBy:  sq.ID,
		Source: types.EvidenceSource{
			URL:       res.URL,
			Title:     res.Title,
			FetchedAt: time.Now().UTC(),
		},
	}

	accepted, err := r.store.Insert(ctx, collection, ev)
	if err != nil {
		// Drop the single item; a store hiccup must not sink the pass.
		log.Printf("[RESEARCHER] WARNING: store insert failed id=%s: %v", ev.ID, err)
		return types.Evidence{}, false
	}
	if !accepted {
		out.Duplicates++
		telemetry.EvidenceTotal.WithLabelValues("duplicate").Inc()
		return types.Evidence{}, false
	}
	telemetry.EvidenceTotal.WithLabelValues("accepted").Inc()
	return ev, true
}

// ingestDocuments extracts the configured local documents once per plan that
// declares a document source.
func (r *Researcher) ingestDocuments(ctx context.Context, collection string, plan types.Plan, docs []string, cit *int, out *Outcome) {
	var docSQ *types.SubQuery
	for i := range plan.SubQueries {
		if plan.SubQueries[i].HasSource(types.SourceDocument) {
			docSQ = &plan.SubQueries[i]
			break
		}
	}
	if docSQ == nil || r.extractor == nil {
		return
	}

	for ordinal, path := range docs {
		text, err := r.extractor.Extract(path)
		if err != nil {
			log.Printf("[RESEARCHER] WARNING: document extract failed path=%s: %v", path, err)
			continue
		}
		res := search.Result{
			URL:     "file://" + path,
			Title:   filepath.Base(path),
			Content: text,
		}
		ev, ok := r.ingest(ctx, collection, *docSQ, types.SourceDocument, ordinal, res, *cit+1, out)
		if !ok {
			continue
		}
		*cit++
		out.Evidence = append(out.Evidence, ev)
	}
}
