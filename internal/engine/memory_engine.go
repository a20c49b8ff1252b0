package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/scrypster/exocortex/internal/scoring"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/pkg/types"
)

const benchmarkTag = "benchmark-artifact"

// Create runs the full memory-creation pipeline (spec C3 step 3): hash
// dedup with tag merge, the benchmark branch, chunking, embedding, semantic
// dedup/supersede, and entity-extraction side effects. It never aborts on
// an embedding-provider failure — the memory is still created without a
// vector.
func (e *Engine) Create(ctx context.Context, input types.CreateMemoryInput) (*types.CreateMemoryResult, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", types.ErrInvalidInput)
	}
	input.Content = content

	if input.Benchmark {
		importance := 0.15
		input.Importance = &importance
		input.IsMetadata = true
		input.Tags = appendTag(input.Tags, benchmarkTag)
	}

	result, err := e.createWithRetry(ctx, input)
	if err != nil {
		return nil, err
	}

	// The store's own content_hash lookup already reports a dedup skip
	// without inserting a duplicate row (spec C3 step 4); merge the new
	// tags into the existing memory and stop here.
	if result.DedupAction == types.DedupSkipped {
		merged, err := e.mergeTags(ctx, result.Memory, input.Tags)
		if err != nil {
			return nil, err
		}
		result.Memory = merged
		return result, nil
	}

	if input.Benchmark {
		e.fireMemoryCreated(result.Memory.ID)
		return result, nil
	}

	chunked, err := e.maybeChunk(ctx, result.Memory)
	if err != nil {
		e.log.LogError("chunk", err, "memory_id", result.Memory.ID)
	} else if chunked {
		e.log.LogOperation("chunk", "memory_id", result.Memory.ID)
	}

	if e.embedder != nil {
		if vec, err := e.embedder.Embed(ctx, result.Memory.Content); err != nil {
			e.log.LogError("embed", err, "memory_id", result.Memory.ID)
		} else if err := e.setEmbedding(ctx, result.Memory.ID, vec); err != nil {
			e.log.LogError("embed_persist", err, "memory_id", result.Memory.ID)
		} else {
			result.Memory.Embedding = vec
		}

		if dedupResult, err := e.semanticDedup(ctx, result.Memory); err != nil {
			e.log.LogError("semantic_dedup", err, "memory_id", result.Memory.ID)
		} else if dedupResult != nil {
			result.DedupAction = types.DedupSuperseded
			result.SupersededID = dedupResult.SupersededID
			result.DedupSimilarity = dedupResult.DedupSimilarity
		}
	}

	e.extractEntities(ctx, result.Memory)

	e.fireMemoryCreated(result.Memory.ID)
	return result, nil
}

// Update applies a partial update and, when the content of a chunked parent
// shrinks back under chunking.max_length, dechunks it: its children are
// deleted and it is re-embedded as an ordinary unchunked memory (spec C3,
// "dechunks by deleting all children and re-embedding the parent").
func (e *Engine) Update(ctx context.Context, id string, input types.UpdateMemoryInput) (*types.Memory, error) {
	updated, err := e.memories.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}
	if input.Content == nil {
		return updated, nil
	}

	maxLength := e.settings.GetInt(ctx, "chunking.max_length", 1500)
	if len(updated.Content) > maxLength {
		return updated, nil
	}
	children, err := e.memories.Children(ctx, id)
	if err != nil || len(children) == 0 {
		return updated, err
	}
	if err := e.memories.DeleteChildren(ctx, id); err != nil {
		return nil, fmt.Errorf("engine: dechunk: %w", err)
	}
	if e.embedder != nil {
		if vec, err := e.embedder.Embed(ctx, updated.Content); err == nil {
			if err := e.setEmbedding(ctx, id, vec); err == nil {
				updated.Embedding = vec
			}
		}
	}
	return updated, nil
}

// createWithRetry inserts a new memory, retrying once on a transient
// storage conflict before surfacing it (spec C3 failure semantics: "a
// transaction conflict is retried once then surfaced as Conflict").
func (e *Engine) createWithRetry(ctx context.Context, input types.CreateMemoryInput) (*types.CreateMemoryResult, error) {
	result, err := e.memories.Create(ctx, input)
	if err == nil {
		return result, nil
	}
	if !storage.IsTransient(err) {
		return nil, err
	}
	result, err = e.memories.Create(ctx, input)
	if err != nil {
		if storage.IsTransient(err) {
			return nil, fmt.Errorf("%w: %v", types.ErrConflict, err)
		}
		return nil, err
	}
	return result, nil
}

// mergeTags merges newTags into existing's tag set (spec C3 step 4: "merge
// the new tags into the existing memory") and persists the union.
func (e *Engine) mergeTags(ctx context.Context, existing *types.Memory, newTags []string) (*types.Memory, error) {
	if len(newTags) == 0 {
		return existing, nil
	}

	seen := make(map[string]bool, len(existing.Tags))
	merged := append([]string{}, existing.Tags...)
	for _, t := range existing.Tags {
		seen[t] = true
	}
	changed := false
	for _, t := range newTags {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
			changed = true
		}
	}
	if !changed {
		return existing, nil
	}

	return e.memories.Update(ctx, existing.ID, types.UpdateMemoryInput{Tags: merged})
}

func appendTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

// semanticDedupResult reports a supersede performed during semantic dedup.
type semanticDedupResult struct {
	SupersededID    string
	DedupSimilarity float64
}

// semanticDedup compares a freshly embedded memory against the most recent
// active memories of the same content type (spec C3 step 7). A match
// requires both cosine similarity at or above dedup.similarity_threshold
// and a non-empty tag-set overlap; the older memory is superseded.
func (e *Engine) semanticDedup(ctx context.Context, m *types.Memory) (*semanticDedupResult, error) {
	if !e.settings.GetBool(ctx, "dedup.enabled", true) || len(m.Embedding) == 0 {
		return nil, nil
	}

	pool := e.settings.GetInt(ctx, "dedup.candidate_pool", 200)
	threshold := e.settings.GetFloat(ctx, "dedup.similarity_threshold", 0.85)

	page, err := e.memories.List(ctx, storage.ListOptions{
		ContentType: m.ContentType,
		Limit:       pool,
		SortBy:      "created_at",
		SortOrder:   "desc",
	})
	if err != nil {
		return nil, err
	}

	for i := range page.Items {
		candidate := &page.Items[i]
		if candidate.ID == m.ID || len(candidate.Embedding) == 0 {
			continue
		}
		if !tagsOverlap(candidate.Tags, m.Tags) {
			continue
		}
		sim := scoring.Cosine(candidate.Embedding, m.Embedding)
		if sim < threshold {
			continue
		}

		if err := e.memories.Supersede(ctx, candidate.ID, m.ID); err != nil {
			return nil, err
		}
		return &semanticDedupResult{SupersededID: candidate.ID, DedupSimilarity: sim}, nil
	}

	return nil, nil
}

func tagsOverlap(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return true
		}
	}
	return false
}

// maybeChunk splits content exceeding chunking.max_length into children,
// created one after another in chunk order, under a parent row holding the
// full content (spec C3 step 5). The children's chunk_index is not set.
func (e *Engine) maybeChunk(ctx context.Context, m *types.Memory) (bool, error) {
	if !e.settings.GetBool(ctx, "chunking.enabled", true) {
		return false, nil
	}
	maxLength := e.settings.GetInt(ctx, "chunking.max_length", 1500)
	if len(m.Content) <= maxLength {
		return false, nil
	}
	targetSize := e.settings.GetInt(ctx, "chunking.target_size", 500)

	chunks := splitIntoChunks(m.Content, targetSize)
	if len(chunks) < 2 {
		return false, nil
	}

	for i, chunk := range chunks {
		idx := i
		_, err := e.memories.Create(ctx, types.CreateMemoryInput{
			Content:     chunk,
			ContentType: m.ContentType,
			Source:      m.Source,
			ParentID:    m.ID,
			Tags:        m.Tags,
		})
		if err != nil {
			return false, fmt.Errorf("engine: create chunk %d: %w", idx, err)
		}
	}

	return true, nil
}

// splitIntoChunks breaks content into ordered, roughly target-sized chunks
// on whitespace boundaries so no chunk splits a word.
func splitIntoChunks(content string, targetSize int) []string {
	if targetSize < 1 {
		targetSize = 500
	}
	words := strings.Fields(content)
	var chunks []string
	var b strings.Builder
	for _, w := range words {
		if b.Len() > 0 && b.Len()+1+len(w) > targetSize {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func (e *Engine) setEmbedding(ctx context.Context, id string, vec []float32) error {
	return e.memories.SetEmbedding(ctx, id, vec)
}

// extractEntities does a light capitalized-phrase sweep over content and
// links any recognized entity names, letting the graph-proximity component
// of retrieval (C5) and the graph-densify job (C6) benefit from entities
// that already exist without requiring an LLM extraction pass.
func (e *Engine) extractEntities(ctx context.Context, m *types.Memory) {
	names := candidateEntityNames(m.Content)
	for _, name := range names {
		entity, err := e.entities.FindEntityByName(ctx, name, types.EntityTypeConcept)
		if err != nil && err != storage.ErrNotFound {
			continue
		}
		if entity == nil {
			continue // only link against entities that already exist; creation is a deliberate user/operator action
		}
		_ = e.entities.LinkMemoryEntity(ctx, m.ID, entity.ID, 0.5)
	}
}

// candidateEntityNames returns the distinct multi-word, Title-Cased phrases
// in content, longest-first so a multi-word phrase is tried before its
// prefix.
func candidateEntityNames(content string) []string {
	words := strings.Fields(content)
	var names []string
	seen := map[string]bool{}
	for i := 0; i < len(words); i++ {
		if !isCapitalizedWord(words[i]) {
			continue
		}
		j := i + 1
		for j < len(words) && isCapitalizedWord(words[j]) {
			j++
		}
		if j > i+1 {
			name := strings.Join(words[i:j], " ")
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		i = j - 1
	}
	sort.Slice(names, func(a, b int) bool { return len(names[a]) > len(names[b]) })
	return names
}

func isCapitalizedWord(w string) bool {
	trimmed := strings.TrimFunc(w, func(r rune) bool { return !('A' <= r && r <= 'Z') && !('a' <= r && r <= 'z') })
	if trimmed == "" {
		return false
	}
	return trimmed[0] >= 'A' && trimmed[0] <= 'Z'
}
