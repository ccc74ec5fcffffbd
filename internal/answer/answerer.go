// Package answer turns a policy question into a grounded reply: embed the
// question, rank chunks from the active collections, and prompt the chat
// model with the pooled context.
package answer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mohammed-elhaj/hr-bot/internal/docindex"
	"github.com/mohammed-elhaj/hr-bot/internal/llm"
)

// NoDocumentsReply is returned verbatim when nothing is indexed. The
// assistant speaks Arabic to its users, so the canned replies do too.
const NoDocumentsReply = "عذراً، لا توجد مستندات متاحة للبحث."

const promptTemplate = `أنت مساعد متخصص في الموارد البشرية. استخدم المعلومات التالية للإجابة على السؤال.
إذا لم تجد المعلومات في النص المتوفر، قل ذلك بصراحة.

السؤال: %s

السياق:
%s

الإجابة:`

// ChatClient is the completion side of the LLM service client.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []llm.Message, jsonSchema *llm.Schema) (string, error)
}

// Result carries the generated reply and the chunks it was grounded on.
type Result struct {
	Answer  string                 `json:"answer"`
	Sources []docindex.ScoredChunk `json:"source_documents"`
}

// Answerer runs retrieval-augmented answering over a collection registry.
type Answerer struct {
	chat          ChatClient
	embedder      *docindex.Embedder
	registry      *docindex.Registry
	chatModel     string
	perCollection int
	contextLimit  int
}

// New creates an Answerer. perCollection chunks are fetched from each
// searched collection; the pooled list is cut to contextLimit.
func New(chat ChatClient, embedder *docindex.Embedder, registry *docindex.Registry, chatModel string, perCollection, contextLimit int) *Answerer {
	return &Answerer{
		chat:          chat,
		embedder:      embedder,
		registry:      registry,
		chatModel:     chatModel,
		perCollection: perCollection,
		contextLimit:  contextLimit,
	}
}

// Answer replies to a question using the active collections, or only those
// in collectionIDs when non-empty. With nothing to search it returns the
// canned no-documents reply without calling the model.
func (a *Answerer) Answer(ctx context.Context, question string, collectionIDs []string) (Result, error) {
	cols := a.registry.Active(collectionIDs)
	if len(cols) == 0 {
		return Result{Answer: NoDocumentsReply}, nil
	}

	vector, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embedding question: %w", err)
	}

	sources, err := a.rank(cols, vector)
	if err != nil {
		return Result{}, err
	}
	if len(sources) == 0 {
		return Result{Answer: NoDocumentsReply}, nil
	}

	texts := make([]string, len(sources))
	for i, sc := range sources {
		texts[i] = sc.Text
	}
	prompt := fmt.Sprintf(promptTemplate, question, strings.Join(texts, "\n"))

	reply, err := a.chat.Chat(ctx, a.chatModel, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return Result{}, fmt.Errorf("generating answer: %w", err)
	}
	return Result{Answer: reply, Sources: sources}, nil
}

// rank pools the per-collection hits and keeps the best contextLimit chunks
// by score, regardless of which collection they came from.
func (a *Answerer) rank(cols []*docindex.Collection, vector []float32) ([]docindex.ScoredChunk, error) {
	var pooled []docindex.ScoredChunk
	for _, col := range cols {
		hits, err := col.Search(vector, a.perCollection)
		if err != nil {
			return nil, fmt.Errorf("searching collection %s: %w", col.ID(), err)
		}
		pooled = append(pooled, hits...)
	}

	sort.SliceStable(pooled, func(i, j int) bool {
		return pooled[i].Score > pooled[j].Score
	})
	if len(pooled) > a.contextLimit {
		pooled = pooled[:a.contextLimit]
	}
	return pooled, nil
}
