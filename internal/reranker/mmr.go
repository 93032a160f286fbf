package reranker

import (
	"context"
	"fmt"
	"math"
)

// DefaultLambda weighs relevance and diversity equally.
const DefaultLambda = 0.5

// MMRReranker implements maximal marginal relevance. Each step picks the
// candidate maximising
//
//	lambda*sim(c, q) - (1-lambda)*max(sim(c, s) for s in selected)
//
// with cosine similarity. The first pick is always the candidate closest to
// the query, and ties go to the earlier candidate.
type MMRReranker struct {
	lambda float64
}

// NewMMRReranker creates an MMR reranker. A lambda outside (0, 1] selects
// DefaultLambda.
func NewMMRReranker(lambda float64) *MMRReranker {
	if lambda <= 0 || lambda > 1 {
		lambda = DefaultLambda
	}
	return &MMRReranker{lambda: lambda}
}

// Lambda returns the relevance weight in use.
func (r *MMRReranker) Lambda() float64 {
	return r.lambda
}

// Rerank selects up to topK of docs. A topK of zero or less keeps every
// candidate, reordered.
func (r *MMRReranker) Rerank(ctx context.Context, query []float32, docs []Document, topK int) ([]ScoredDocument, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 || topK > len(docs) {
		topK = len(docs)
	}
	if topK == 0 {
		return []ScoredDocument{}, nil
	}

	toQuery := make([]float64, len(docs))
	for i, d := range docs {
		if len(d.Embedding) != len(query) {
			return nil, fmt.Errorf("%w: candidate %s has %d dimensions, query has %d",
				ErrDimensionMismatch, d.ID, len(d.Embedding), len(query))
		}
		toQuery[i] = cosine(query, d.Embedding)
	}

	first := 0
	for i := range toQuery {
		if toQuery[i] > toQuery[first] {
			first = i
		}
	}

	selected := make([]ScoredDocument, 0, topK)
	picked := make([]bool, len(docs))
	// redundancy[i] is the max similarity of docs[i] to anything selected so far.
	redundancy := make([]float64, len(docs))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	pick := func(idx int, score float64) {
		picked[idx] = true
		selected = append(selected, ScoredDocument{
			Document:      docs[idx],
			RerankerScore: float32(score),
			OriginalRank:  idx,
		})
		for i := range docs {
			if picked[i] {
				continue
			}
			if s := cosine(docs[i].Embedding, docs[idx].Embedding); s > redundancy[i] {
				redundancy[i] = s
			}
		}
	}

	pick(first, toQuery[first])
	for len(selected) < topK {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		best, bestScore := -1, math.Inf(-1)
		for i := range docs {
			if picked[i] {
				continue
			}
			score := r.lambda*toQuery[i] - (1-r.lambda)*redundancy[i]
			if math.IsNaN(score) {
				score = math.Inf(-1)
			}
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}
		pick(best, bestScore)
	}

	return selected, nil
}

// Close is a no-op.
func (r *MMRReranker) Close() error {
	return nil
}

// cosine returns the cosine similarity of a and b, 0 when either is a zero
// vector, and -Inf when either holds NaN or Inf components so such a
// candidate ranks after every usable one.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return math.Inf(-1)
	}
	return sim
}

var _ Reranker = (*MMRReranker)(nil)
