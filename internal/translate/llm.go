package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexiqai/assist-gateway/internal/llm"
)

const llmTranslatePrompt = "You are a translation engine. Translate the user's text into %s. Reply with the translation only, without notes or quotation marks."

// LLMTranslator asks a chat model for the translation
type LLMTranslator struct {
	provider llm.Provider
	catalog  *Catalog
}

// NewLLMTranslator creates a translator backed by a chat completion provider
func NewLLMTranslator(provider llm.Provider, catalog *Catalog) *LLMTranslator {
	return &LLMTranslator{provider: provider, catalog: catalog}
}

// Translate implements Translator. The model does not report the source
// language, so SourceLanguage is left empty.
func (t *LLMTranslator) Translate(ctx context.Context, text, target string) (Result, error) {
	name := target
	if lang, ok := t.catalog.Lookup(target); ok {
		name = lang.Name
	}

	out, err := t.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(llmTranslatePrompt, name)},
			{Role: "user", Content: text},
		},
		MaxTokens:   2 * (len(text) + 50),
		Temperature: 0.2,
	})
	if err != nil {
		return Result{}, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return Result{}, fmt.Errorf("model returned an empty translation")
	}
	return Result{Text: out}, nil
}
