package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/exocortex/internal/scoring"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

// SearchResult is one ranked memory returned from the hybrid pipeline.
type SearchResult struct {
	Memory *types.Memory
	Score  float64
}

// Search runs the hybrid retrieval pipeline (spec C5): a lexical pass, a
// vector pass, a graph-proximity pass, fusion (RRF by default, legacy
// weighted-sum as a setting), and the side effects (access logging,
// co-retrieval recording, search-miss logging).
func (e *Engine) Search(ctx context.Context, opts storage.SearchOptions) ([]SearchResult, error) {
	opts.Normalize()

	candidateCap := clampInt(10*(opts.Offset+opts.Limit), 100, 1000)

	ftsOpts := storage.SearchOptions{Query: opts.Query, ContentType: opts.ContentType, Limit: candidateCap}
	ftsPage, err := e.search.FullTextSearch(ctx, ftsOpts)
	if err != nil {
		return nil, err
	}
	ftsRanked, ftsByID := rankFTS(ftsPage.Items)

	var vectorRanked []string
	vectorByID := make(map[string]*types.Memory)
	if len(opts.QueryEmbedding) > 0 {
		vecPage, err := e.search.VectorSearch(ctx, opts.QueryEmbedding, storage.SearchOptions{ContentType: opts.ContentType, Limit: candidateCap})
		if err != nil {
			return nil, err
		}
		for i := range vecPage.Items {
			m := &vecPage.Items[i]
			vectorRanked = append(vectorRanked, m.ID)
			vectorByID[m.ID] = m
		}
	}

	pool := make(map[string]*types.Memory, len(ftsByID)+len(vectorByID))
	for id, m := range ftsByID {
		pool[id] = m
	}
	for id, m := range vectorByID {
		pool[id] = m
	}
	if e.settings.GetBool(ctx, "search.query_expansion", false) {
		e.expandCandidatePool(ctx, opts.Query, pool)
	}

	if len(opts.Tags) > 0 {
		filterPoolByTags(pool, opts.Tags)
	}

	if len(pool) > candidateCap {
		trimCandidatePool(pool, candidateCap)
	}

	graphRanked := e.graphProximity(ctx, opts.Query, pool)

	nMax, err := e.memories.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	useRRF := e.settings.GetBool(ctx, "scoring.use_rrf", true)
	var fused []scoring.ScoredID
	if useRRF {
		fused = e.fuseRRF(ctx, ftsRanked, vectorRanked, graphRanked, pool, nMax)
	} else {
		ftsScores := normalizeRankScores(ftsRanked)
		vectorScores := cosineScores(pool, opts.QueryEmbedding)
		fused = e.fuseLegacy(ctx, pool, ftsScores, vectorScores, nMax)
	}

	tagBoost := e.settings.GetFloat(ctx, "scoring.tag_boost", 0.10)
	if len(fused) > 0 {
		applyTagBoost(fused, pool, opts.Query, tagBoost)
		sort.Slice(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	}

	results := sliceResults(fused, pool, opts)

	e.recordSearchSideEffects(ctx, opts.Query, results)

	return results, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// rankFTS returns the ids of ftsPage.Items in rank order (already ordered by
// the store's bm25 pass) plus a lookup map.
func rankFTS(items []types.Memory) ([]string, map[string]*types.Memory) {
	ids := make([]string, 0, len(items))
	byID := make(map[string]*types.Memory, len(items))
	for i := range items {
		ids = append(ids, items[i].ID)
		byID[items[i].ID] = &items[i]
	}
	return ids, byID
}

func trimCandidatePool(pool map[string]*types.Memory, cap int) {
	if len(pool) <= cap {
		return
	}
	ids := make([]string, 0, len(pool))
	for id := range pool {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return pool[ids[i]].CreatedAt.After(pool[ids[j]].CreatedAt) })
	for _, id := range ids[cap:] {
		delete(pool, id)
	}
}

// filterPoolByTags restricts the candidate pool to memories whose tags
// intersect the requested filter tags (spec C5 step 1: "Tags are lowercased
// and intersected via set-membership"). Distinct from applyTagBoost, which
// derives its boost from the query text rather than this explicit filter.
func filterPoolByTags(pool map[string]*types.Memory, tags []string) {
	wanted := make(map[string]bool, len(tags))
	for _, t := range tags {
		wanted[strings.ToLower(t)] = true
	}
	for id, m := range pool {
		if !memoryTagsMatchAnySet(m.Tags, wanted) {
			delete(pool, id)
		}
	}
}

func memoryTagsMatchAnySet(tags []string, wanted map[string]bool) bool {
	for _, t := range tags {
		if wanted[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

// expandCandidatePool adds the linked memories of each concept entity whose
// name matches a query word of length >= 3, and of up to 5 entities related
// to it, into the candidate pool (spec C5 step 3). Entity aliases are not
// looked up, and the query text itself is not expanded.
func (e *Engine) expandCandidatePool(ctx context.Context, query string, pool map[string]*types.Memory) {
	words := queryWords(query)
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		entity, err := e.entities.FindEntityByName(ctx, w, types.EntityTypeConcept)
		if err != nil || entity == nil {
			continue
		}
		e.addEntityMemories(ctx, entity.ID, pool)

		rels, err := e.entities.GetRelationships(ctx, entity.ID)
		if err != nil {
			continue
		}
		added := 0
		for _, rel := range rels {
			if added >= 5 {
				break
			}
			other := rel.TargetID
			if other == entity.ID {
				other = rel.SourceID
			}
			e.addEntityMemories(ctx, other, pool)
			added++
		}
	}
}

func (e *Engine) addEntityMemories(ctx context.Context, entityID string, pool map[string]*types.Memory) {
	ids, err := e.entities.GetEntityMemories(ctx, entityID)
	if err != nil {
		return
	}
	for _, id := range ids {
		if _, ok := pool[id]; ok {
			continue
		}
		m, err := e.memories.Get(ctx, id)
		if err == nil {
			pool[id] = m
		}
	}
}

func queryWords(query string) []string {
	var words []string
	var b []rune
	flush := func() {
		if len(b) > 0 {
			words = append(words, string(b))
			b = nil
		}
	}
	for _, r := range query {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b = append(b, r)
		} else {
			flush()
		}
	}
	flush()
	return words
}

// graphProximity scores each pooled candidate by how closely it relates to
// query words through the entity graph and memory links (spec C5 step 6):
// entities directly matching a query word contribute 1.0, 2-hop neighbors
// 0.5; memory-link-connected candidates contribute 0.3 + 0.5*link_strength.
// A candidate's score is the max across all contributing signals.
func (e *Engine) graphProximity(ctx context.Context, query string, pool map[string]*types.Memory) map[string]float64 {
	scores := make(map[string]float64, len(pool))
	words := queryWords(query)

	directEntities := make(map[string]bool)
	for _, w := range words {
		entity, err := e.entities.FindEntityByName(ctx, w, types.EntityTypeConcept)
		if err != nil || entity == nil {
			continue
		}
		directEntities[entity.ID] = true

		ids, _ := e.entities.GetEntityMemories(ctx, entity.ID)
		for _, id := range ids {
			if _, ok := pool[id]; ok {
				scores[id] = maxF(scores[id], 1.0)
			}
		}

		rels, err := e.entities.GetRelationships(ctx, entity.ID)
		if err != nil {
			continue
		}
		for _, rel := range rels {
			other := rel.TargetID
			if other == entity.ID {
				other = rel.SourceID
			}
			ids, _ := e.entities.GetEntityMemories(ctx, other)
			for _, id := range ids {
				if _, ok := pool[id]; ok {
					scores[id] = maxF(scores[id], 0.5)
				}
			}
		}
	}

	for id := range pool {
		refs, err := e.links.GetLinkedRefs(ctx, id, 50)
		if err != nil {
			continue
		}
		for _, ref := range refs {
			if _, ok := pool[ref.MemoryID]; ok {
				scores[ref.MemoryID] = maxF(scores[ref.MemoryID], 0.3+0.5*ref.Strength)
			}
		}
	}

	return scores
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// fuseRRF builds {vector, fts, graph} ranked lists and fuses them with
// reciprocal rank fusion, then multiplies each score by
// 1 + w_recency*recency + w_freq*frequency + w_useful*usefulness (spec C5
// step 8, RRF mode).
func (e *Engine) fuseRRF(ctx context.Context, ftsRanked, vectorRanked []string, graphScores map[string]float64, pool map[string]*types.Memory, nMax int) []scoring.ScoredID {
	vectorWeight := e.settings.GetFloat(ctx, "scoring.vector_weight", 0.45)
	ftsWeight := e.settings.GetFloat(ctx, "scoring.fts_weight", 0.25)
	graphWeight := e.settings.GetFloat(ctx, "scoring.graph_weight", 0.10)
	k := e.settings.GetFloat(ctx, "scoring.rrf_k", 60)
	minScore := e.settings.GetFloat(ctx, "scoring.rrf_min_score", 0.001)

	recencyWeight := e.settings.GetFloat(ctx, "scoring.recency_weight", 0.20)
	freqWeight := e.settings.GetFloat(ctx, "scoring.frequency_weight", 0.10)
	usefulWeight := e.settings.GetFloat(ctx, "scoring.usefulness_weight", 0.05)
	decayRate := e.settings.GetFloat(ctx, "scoring.recency_decay", 0.05)

	graphRanked := rankedFromScores(graphScores)

	lists := []scoring.RankedList{
		{IDs: vectorRanked, Weight: vectorWeight},
		{IDs: ftsRanked, Weight: ftsWeight},
		{IDs: graphRanked, Weight: graphWeight},
	}
	fused := scoring.ReciprocalRankFusion(lists, k)

	out := make([]scoring.ScoredID, 0, len(fused))
	now := time.Now()
	for _, f := range fused {
		m, ok := pool[f.ID]
		if !ok {
			continue
		}
		daysSince := now.Sub(m.CreatedAt).Hours() / 24
		recency := scoring.Recency(daysSince, decayRate, m.Importance)
		freq := scoring.Frequency(m.AccessCount, nMax)
		useful := scoring.Usefulness(m.UsefulCount)
		multiplier := 1 + recencyWeight*recency + freqWeight*freq + usefulWeight*useful

		score := f.Score * multiplier
		if score < minScore {
			continue
		}
		out = append(out, scoring.ScoredID{ID: f.ID, Score: score})
	}
	return out
}

// fuseLegacy scores every pooled candidate as a weighted sum of its
// component scores, dropping anything below scoring.min_score (spec C5
// step 8, legacy mode).
func (e *Engine) fuseLegacy(ctx context.Context, pool map[string]*types.Memory, ftsScores, vectorScores map[string]float64, nMax int) []scoring.ScoredID {
	vectorWeight := e.settings.GetFloat(ctx, "scoring.vector_weight", 0.45)
	ftsWeight := e.settings.GetFloat(ctx, "scoring.fts_weight", 0.25)
	recencyWeight := e.settings.GetFloat(ctx, "scoring.recency_weight", 0.20)
	freqWeight := e.settings.GetFloat(ctx, "scoring.frequency_weight", 0.10)
	usefulWeight := e.settings.GetFloat(ctx, "scoring.usefulness_weight", 0.05)
	decayRate := e.settings.GetFloat(ctx, "scoring.recency_decay", 0.05)
	minScore := e.settings.GetFloat(ctx, "scoring.min_score", 0.15)

	out := make([]scoring.ScoredID, 0, len(pool))
	now := time.Now()
	for id, m := range pool {
		daysSince := now.Sub(m.CreatedAt).Hours() / 24
		recency := scoring.Recency(daysSince, decayRate, m.Importance)
		freq := scoring.Frequency(m.AccessCount, nMax)
		useful := scoring.Usefulness(m.UsefulCount)

		score := vectorWeight*vectorScores[id] + ftsWeight*ftsScores[id] +
			recencyWeight*recency + freqWeight*freq + usefulWeight*useful
		if score < minScore {
			continue
		}
		out = append(out, scoring.ScoredID{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// normalizeRankScores maps each ranked id to a [0,1] score by its position
// in a best-first list (spec C5 step 2: "rank normalization to [0,1]").
func normalizeRankScores(ranked []string) map[string]float64 {
	out := make(map[string]float64, len(ranked))
	n := len(ranked)
	if n == 0 {
		return out
	}
	for i, id := range ranked {
		out[id] = 1 - float64(i)/float64(n)
	}
	return out
}

// cosineScores computes a [0,1]-clamped cosine similarity against query for
// every pooled candidate with an embedding (spec C5 step 6: "vector pass,
// cosine clamped at 0").
func cosineScores(pool map[string]*types.Memory, query []float32) map[string]float64 {
	out := make(map[string]float64, len(pool))
	if len(query) == 0 {
		return out
	}
	for id, m := range pool {
		if len(m.Embedding) == 0 {
			continue
		}
		sim := scoring.Cosine(m.Embedding, query)
		if sim < 0 {
			sim = 0
		}
		out[id] = sim
	}
	return out
}

func rankedFromScores(scores map[string]float64) []string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// applyTagBoost adds tag_boost * max(fused score) to every candidate with a
// tag containing one of the query's words as a substring (spec C5 step 8:
// "if any query term (>=3 chars, lowercased) appears as a substring of any
// tag, add tag_boost * max_rrf_score"). It is derived from the query text
// itself, independent of any explicit tag filter on the request.
func applyTagBoost(fused []scoring.ScoredID, pool map[string]*types.Memory, query string, tagBoost float64) {
	if len(fused) == 0 {
		return
	}
	terms := tagBoostTerms(query)
	if len(terms) == 0 {
		return
	}
	maxScore := fused[0].Score
	for _, f := range fused {
		if f.Score > maxScore {
			maxScore = f.Score
		}
	}
	boost := tagBoost * maxScore
	for i := range fused {
		m, ok := pool[fused[i].ID]
		if !ok {
			continue
		}
		if memoryTagsMatchAnyTerm(m.Tags, terms) {
			fused[i].Score += boost
		}
	}
}

// tagBoostTerms returns the query's words of at least 3 characters, lowercased.
func tagBoostTerms(query string) []string {
	words := queryWords(query)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) >= 3 {
			terms = append(terms, strings.ToLower(w))
		}
	}
	return terms
}

func memoryTagsMatchAnyTerm(tags []string, terms []string) bool {
	for _, t := range tags {
		lowerTag := strings.ToLower(t)
		for _, term := range terms {
			if strings.Contains(lowerTag, term) {
				return true
			}
		}
	}
	return false
}

func sliceResults(fused []scoring.ScoredID, pool map[string]*types.Memory, opts storage.SearchOptions) []SearchResult {
	start := opts.Offset
	if start > len(fused) {
		start = len(fused)
	}
	end := start + opts.Limit
	if end > len(fused) {
		end = len(fused)
	}

	out := make([]SearchResult, 0, end-start)
	for _, f := range fused[start:end] {
		m, ok := pool[f.ID]
		if !ok {
			continue
		}
		out = append(out, SearchResult{Memory: m, Score: f.Score})
	}
	return out
}

// recordSearchSideEffects logs an access for every returned result, records
// a co-retrieval observation when 2+ results are returned, and logs a
// search-miss when none are (spec C5 step 10).
func (e *Engine) recordSearchSideEffects(ctx context.Context, query string, results []SearchResult) {
	for _, r := range results {
		if err := e.memories.RecordAccess(ctx, r.Memory.ID, query); err != nil {
			e.log.LogError("record_access", err, "memory_id", r.Memory.ID)
		}
	}

	if len(results) == 0 {
		e.log.Info("search_miss", "query", query)
		return
	}

	if len(results) >= 2 && e.intel != nil {
		top := results
		if len(top) > 10 {
			top = top[:10]
		}
		ids := make([]string, len(top))
		for i, r := range top {
			ids[i] = r.Memory.ID
		}
		hash := coRetrievalHash(query, ids)
		if err := e.intel.RecordCoRetrieval(ctx, hash, ids); err != nil {
			e.log.LogError("record_co_retrieval", err)
		}
	}
}

// coRetrievalHash hashes the query and the top-10 result ids into a 16-hex
// digit fingerprint (spec C5 step 10: "SHA-16 of query + top-10 IDs").
func coRetrievalHash(query string, topIDs []string) string {
	h := sha256.New()
	h.Write([]byte(query))
	for _, id := range topIDs {
		h.Write([]byte{0})
		h.Write([]byte(id))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}
