package ai

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultTopK      = 3
	defaultChunkSize = 1000
	metaSource       = "source"
	metaChunk        = "chunk"
)

var docExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
}

// DirLoader loads every text or markdown file under src.URI, recursively, as
// one document.
type DirLoader struct{}

var _ document.Loader = DirLoader{}

// Load implements document.Loader.
func (DirLoader) Load(ctx context.Context, src document.Source, _ ...document.LoaderOption) ([]*schema.Document, error) {
	root := src.URI
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("open docs dir: %w", err)
	}

	var docs []*schema.Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := docExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		docs = append(docs, &schema.Document{
			ID:       filepath.ToSlash(rel),
			Content:  string(data),
			MetaData: map[string]any{metaSource: filepath.ToSlash(rel)},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk docs dir: %w", err)
	}
	return docs, nil
}

// ParagraphSplitter cuts documents into chunks of whole paragraphs no longer
// than MaxChars, except for single paragraphs that are longer on their own.
type ParagraphSplitter struct {
	MaxChars int
}

var _ document.Transformer = ParagraphSplitter{}

// Transform implements document.Transformer.
func (s ParagraphSplitter) Transform(_ context.Context, src []*schema.Document, _ ...document.TransformerOption) ([]*schema.Document, error) {
	limit := s.MaxChars
	if limit <= 0 {
		limit = defaultChunkSize
	}

	var out []*schema.Document
	for _, doc := range src {
		var chunks []string
		var cur strings.Builder
		for _, para := range strings.Split(strings.ReplaceAll(doc.Content, "\r\n", "\n"), "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			if cur.Len() > 0 && cur.Len()+len(para)+2 > limit {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(para)
		}
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
		}

		for i, chunk := range chunks {
			meta := make(map[string]any, len(doc.MetaData)+1)
			for k, v := range doc.MetaData {
				meta[k] = v
			}
			meta[metaChunk] = i
			out = append(out, &schema.Document{
				ID:       doc.ID + "#" + strconv.Itoa(i),
				Content:  chunk,
				MetaData: meta,
			})
		}
	}
	return out, nil
}

// KeywordRetriever ranks chunks by TF-IDF overlap with the query.
type KeywordRetriever struct {
	docs  []*schema.Document
	terms []map[string]int
	idf   map[string]float64
	topK  int
}

var _ retriever.Retriever = (*KeywordRetriever)(nil)

// NewKeywordRetriever indexes docs. topK <= 0 means the default of 3.
func NewKeywordRetriever(docs []*schema.Document, topK int) *KeywordRetriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	r := &KeywordRetriever{
		docs:  docs,
		terms: make([]map[string]int, len(docs)),
		idf:   make(map[string]float64),
		topK:  topK,
	}

	df := make(map[string]int)
	for i, doc := range docs {
		counts := make(map[string]int)
		for _, t := range tokenize(doc.Content) {
			counts[t]++
		}
		r.terms[i] = counts
		for t := range counts {
			df[t]++
		}
	}
	n := float64(len(docs))
	for t, d := range df {
		r.idf[t] = math.Log(1 + n/float64(d))
	}
	return r
}

// Retrieve implements retriever.Retriever. Chunks sharing no term with the
// query are never returned.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topK := r.topK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)

	queryTerms := make(map[string]struct{})
	for _, t := range tokenize(query) {
		queryTerms[t] = struct{}{}
	}

	type hit struct {
		idx   int
		score float64
	}
	var hits []hit
	for i, counts := range r.terms {
		var score float64
		for t := range queryTerms {
			if tf := counts[t]; tf > 0 {
				score += (1 + math.Log(float64(tf))) * r.idf[t]
			}
		}
		if score <= 0 {
			continue
		}
		if options.ScoreThreshold != nil && score < *options.ScoreThreshold {
			continue
		}
		hits = append(hits, hit{i, score})
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if options.TopK != nil && *options.TopK > 0 && len(hits) > *options.TopK {
		hits = hits[:*options.TopK]
	}

	out := make([]*schema.Document, 0, len(hits))
	for _, h := range hits {
		src := r.docs[h.idx]
		doc := &schema.Document{ID: src.ID, Content: src.Content, MetaData: make(map[string]any, len(src.MetaData))}
		for k, v := range src.MetaData {
			doc.MetaData[k] = v
		}
		out = append(out, doc.WithScore(h.score))
	}
	return out, nil
}

// LoadKnowledge builds a retriever over dir.
func LoadKnowledge(ctx context.Context, dir string, topK int) (*KeywordRetriever, error) {
	docs, err := DirLoader{}.Load(ctx, document.Source{URI: dir})
	if err != nil {
		return nil, err
	}
	chunks, err := ParagraphSplitter{}.Transform(ctx, docs)
	if err != nil {
		return nil, err
	}
	return NewKeywordRetriever(chunks, topK), nil
}

// FormatContext renders retrieved passages as the context block of the
// system instruction.
func FormatContext(docs []*schema.Document) string {
	var b strings.Builder
	b.WriteString("Context information is below.\n--------------------\n")
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(doc.Content))
	}
	b.WriteString("\n--------------------\nUse the context above when it is relevant to the user's message.")
	return b.String()
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "you": {}, "your": {},
	"with": {}, "that": {}, "this": {}, "what": {}, "have": {}, "has": {}, "from": {},
	"about": {}, "can": {}, "how": {}, "who": {}, "not": {}, "but": {}, "all": {},
	"our": {}, "his": {}, "her": {}, "its": {}, "they": {}, "them": {}, "will": {},
	"tell": {}, "me": {}, "is": {}, "of": {}, "to": {}, "in": {}, "on": {}, "an": {},
	"it": {}, "do": {}, "my": {}, "at": {}, "be": {}, "or": {}, "as": {}, "by": {},
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}
