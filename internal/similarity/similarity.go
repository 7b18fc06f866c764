package similarity

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// Defaults for the engine knobs. The values are configuration, not policy:
// callers override them through Options.
const (
	DefaultThreshold = 0.75
	DefaultMinWords  = 5
	DefaultMaxPeers  = 100

	ngramMax       = 3
	scorePrecision = 4
)

// Options tunes the plagiarism engine.
type Options struct {
	Threshold  float64
	MinWords   int
	MaxPeers   int
	UseMinHash bool
}

// PeerDocument is one earlier submission for the same exercise.
type PeerDocument struct {
	SubmissionID uint
	StudentID    uint
	StudentName  string
	Text         string
	SubmittedAt  time.Time
}

// Comparison is one pairwise similarity measurement between the target and a
// peer. The JSON tags follow the persisted report shape.
type Comparison struct {
	SubmissionID uint      `json:"submission_id"`
	StudentID    uint      `json:"student_id"`
	StudentName  string    `json:"student_name"`
	Score        float64   `json:"similarity_score"`
	IsMatch      bool      `json:"is_plagiarism"`
	SubmittedAt  time.Time `json:"date"`
}

// Summary aggregates one batch of comparisons.
type Summary struct {
	MaxSimilarity   float64 `json:"max_similarity"`
	PlagiarismCount int     `json:"plagiarism_count"`
	Threshold       float64 `json:"threshold"`
}

// Engine computes pairwise TF-IDF cosine similarity over word n-grams.
// Every pairwise comparison is self-contained: the vectors are fit per pair,
// never against mutable corpus state, so a fixed pair of texts always yields
// the same score. The engine itself holds no document state between batches,
// so one instance serves every worker goroutine for the process lifetime
// without growing.
type Engine struct {
	opts Options
}

// NewEngine applies defaults and builds an engine.
func NewEngine(opts Options) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MinWords <= 0 {
		opts.MinWords = DefaultMinWords
	}
	if opts.MaxPeers <= 0 {
		opts.MaxPeers = DefaultMaxPeers
	}

	return &Engine{opts: opts}
}

// Threshold returns the configured match threshold.
func (e *Engine) Threshold() float64 {
	return e.opts.Threshold
}

// Compare measures the target against every peer and summarises the batch.
// The peer set is capped at MaxPeers; the most recent peers win. A text with
// fewer than MinWords words is incomparable and scores 0.0 against everything.
func (e *Engine) Compare(target string, peers []PeerDocument) ([]Comparison, Summary) {
	if len(peers) > e.opts.MaxPeers {
		peers = peers[:e.opts.MaxPeers]
	}

	// The preprocessing memo lives for exactly one batch: the target is
	// cleaned once and reused against every peer, then the whole map is
	// dropped so a long-running worker never accumulates submission texts.
	memo := make(map[string]string, len(peers)+1)

	if e.opts.UseMinHash {
		peers = e.shortlist(memo, target, peers)
	}

	comparisons := make([]Comparison, 0, len(peers))
	summary := Summary{Threshold: e.opts.Threshold}

	for _, peer := range peers {
		score := e.similarity(memo, target, peer.Text)
		comparison := Comparison{
			SubmissionID: peer.SubmissionID,
			StudentID:    peer.StudentID,
			StudentName:  peer.StudentName,
			Score:        score,
			IsMatch:      score >= e.opts.Threshold,
			SubmittedAt:  peer.SubmittedAt,
		}
		comparisons = append(comparisons, comparison)

		if score > summary.MaxSimilarity {
			summary.MaxSimilarity = score
		}
		if comparison.IsMatch {
			summary.PlagiarismCount++
		}
	}

	return comparisons, summary
}

// Similarity computes the rounded cosine similarity of the two texts.
func (e *Engine) Similarity(a, b string) float64 {
	return e.similarity(make(map[string]string, 2), a, b)
}

func (e *Engine) similarity(memo map[string]string, a, b string) float64 {
	wordsA := strings.Fields(e.preprocess(memo, a))
	wordsB := strings.Fields(e.preprocess(memo, b))

	if len(wordsA) < e.opts.MinWords || len(wordsB) < e.opts.MinWords {
		return 0.0
	}

	return round(pairCosine(ngrams(wordsA), ngrams(wordsB)), scorePrecision)
}

// preprocess lowercases, strips characters outside letters and whitespace,
// and collapses whitespace runs. Results are memoised per distinct text in
// the batch-scoped memo so one Compare call preprocesses the target only once.
func (e *Engine) preprocess(memo map[string]string, text string) string {
	if cached, ok := memo[text]; ok {
		return cached
	}

	builder := strings.Builder{}
	builder.Grow(len(text))
	lastSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r):
			builder.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && builder.Len() > 0 {
				builder.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	cleaned := strings.TrimSpace(builder.String())
	memo[text] = cleaned

	return cleaned
}

// shortlist builds a throwaway MinHash index over the current batch's peers.
// Signatures from one exercise must not linger into the next run, so the
// index is never kept on the engine.
func (e *Engine) shortlist(memo map[string]string, target string, peers []PeerDocument) []PeerDocument {
	index := NewIndex(defaultPermutations)
	for _, peer := range peers {
		index.Add(peer.SubmissionID, e.preprocess(memo, peer.Text))
	}

	candidates := index.Query(e.preprocess(memo, target), e.opts.Threshold/2)
	if len(candidates) == 0 {
		return nil
	}

	shortlisted := make([]PeerDocument, 0, len(candidates))
	for _, peer := range peers {
		if _, ok := candidates[peer.SubmissionID]; ok {
			shortlisted = append(shortlisted, peer)
		}
	}

	return shortlisted
}

// ngrams expands the word list into unigrams through trigrams.
func ngrams(words []string) map[string]float64 {
	counts := make(map[string]float64, len(words)*ngramMax)
	for n := 1; n <= ngramMax; n++ {
		for i := 0; i+n <= len(words); i++ {
			counts[strings.Join(words[i:i+n], " ")]++
		}
	}
	return counts
}

// pairCosine fits TF-IDF weights over the union vocabulary of exactly the two
// documents, then returns the cosine of the weighted vectors. The smoothed
// inverse document frequency matches ln((1+n)/(1+df))+1 with n=2.
func pairCosine(a, b map[string]float64) float64 {
	var normA, normB, dot float64

	idf := func(df float64) float64 {
		return math.Log(3.0/(1.0+df)) + 1.0
	}

	weightsA := make(map[string]float64, len(a))
	for term, tf := range a {
		df := 1.0
		if _, ok := b[term]; ok {
			df = 2.0
		}
		w := tf * idf(df)
		weightsA[term] = w
		normA += w * w
	}

	for term, tf := range b {
		df := 1.0
		if _, ok := a[term]; ok {
			df = 2.0
		}
		w := tf * idf(df)
		normB += w * w
		if wa, ok := weightsA[term]; ok {
			dot += wa * w
		}
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func round(value float64, digits int) float64 {
	factor := math.Pow(10, float64(digits))
	return math.Round(value*factor) / factor
}
