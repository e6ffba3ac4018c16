// File path: internal/retriever/retriever.go
package retriever

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Azure-Samples/infra-support-copilot/internal/common"
	"github.com/Azure-Samples/infra-support-copilot/internal/store"
)

const defaultSearchLimit = 5

// SearchResult pairs a document with its relevance score for one query.
type SearchResult struct {
	Doc   store.Document `json:"doc"`
	Score float64        `json:"score"`
}

// Retriever ranks the documentation corpus against a query with tf-idf
// cosine similarity. The index is rebuilt wholesale on Refresh; reads and
// rebuilds may interleave across requests.
type Retriever struct {
	mu      sync.RWMutex
	docs    []store.Document
	vectors map[int64]map[string]float64
	norms   map[int64]float64
	df      map[string]int
	total   int
}

// New builds a retriever over the store's document corpus.
func New(ctx context.Context, st *store.Store) (*Retriever, error) {
	r := &Retriever{}
	if err := r.Refresh(ctx, st); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh reloads the corpus and rebuilds the index.
func (r *Retriever) Refresh(ctx context.Context, st *store.Store) error {
	docs, err := st.Documents(ctx)
	if err != nil {
		return err
	}
	r.rebuildIndexes(docs)
	common.Logger().Info("retriever: index rebuilt", "documents", len(docs))
	return nil
}

func (r *Retriever) rebuildIndexes(docs []store.Document) {
	vectors := make(map[int64]map[string]float64)
	df := make(map[string]int)
	for _, doc := range docs {
		corpus := doc.Title + " " + doc.Kind + " " + doc.Content
		tf := make(map[string]float64)
		for _, term := range tokenize(corpus) {
			tf[term]++
		}
		for term := range tf {
			df[term]++
		}
		vectors[doc.ID] = tf
	}
	norms := make(map[int64]float64)
	total := len(docs)
	for id, tf := range vectors {
		var norm float64
		for term, freq := range tf {
			weight := tfidfWeight(df, total, term, freq)
			tf[term] = weight
			norm += weight * weight
		}
		norms[id] = math.Sqrt(norm)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = docs
	r.vectors = vectors
	r.norms = norms
	r.df = df
	r.total = total
}

// Search returns the highest-scoring documents for the query, best first.
// Documents with no positive similarity are omitted.
func (r *Retriever) Search(query string, limit int) []SearchResult {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	qtf := make(map[string]float64)
	for _, term := range terms {
		qtf[term]++
	}
	var qnorm float64
	for term, freq := range qtf {
		weight := tfidfWeight(r.df, r.total, term, freq)
		qtf[term] = weight
		qnorm += weight * weight
	}
	qnorm = math.Sqrt(qnorm)
	if qnorm == 0 {
		return nil
	}
	scores := make([]SearchResult, 0, len(r.docs))
	for _, doc := range r.docs {
		dv := r.vectors[doc.ID]
		if len(dv) == 0 {
			continue
		}
		var dot float64
		for term, weight := range qtf {
			dot += weight * dv[term]
		}
		denom := qnorm * r.norms[doc.ID]
		if denom == 0 {
			continue
		}
		score := dot / denom
		if score <= 0 {
			continue
		}
		scores = append(scores, SearchResult{Doc: doc, Score: score})
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	replacer := strings.NewReplacer(
		".", " ",
		",", " ",
		"\n", " ",
		"\t", " ",
		":", " ",
		";", " ",
		"-", " ",
		"_", " ",
		"(", " ",
		")", " ",
		"'", " ",
		"\"", " ",
	)
	cleaned := replacer.Replace(text)
	return strings.Fields(cleaned)
}

func tfidfWeight(df map[string]int, total int, term string, freq float64) float64 {
	count := float64(df[term])
	if count == 0 {
		return 0
	}
	idf := math.Log((float64(total)+1)/(count+1)) + 1
	return freq * idf
}
