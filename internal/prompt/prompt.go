package prompt

import (
	"fmt"
	"strings"

	"plower/internal/domain"
)

// DefaultMaxChars bounds the context block when no limit is given.
const DefaultMaxChars = 5000

const templateJA = `あなたはRAGシステムとして機能します。提供された以下の文書に基づいて、ユーザーの質問に日本語で簡潔に答えてください。
文書に関連情報がない場合は、「%s」と伝えてください。
参照した文書名（【文書名】）を引用として回答の末尾に記載しても構いません。

--- 文書 ---
%s
---

質問: %s`

const templateEN = `You are acting as a retrieval-augmented assistant. Answer the user's question concisely using only the documents provided below.
If the documents contain no relevant information, reply "%s".
You may cite the names of the documents you used (【name】) at the end of your answer.

--- Documents ---
%s
---

Question: %s`

// Fallback sentences the model is told to emit when nothing relevant exists.
const (
	FallbackJA = "提供された文書に関連情報がないため回答できません。"
	FallbackEN = "The provided documents do not contain relevant information, so I cannot answer."
)

// BuildContext joins ranked documents as "【name】\ncontent" blocks and cuts the
// result to maxChars characters, possibly mid-document.
func BuildContext(scored []domain.ScoredDocument, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	blocks := make([]string, len(scored))
	for i, d := range scored {
		blocks[i] = "【" + d.Name + "】\n" + d.Content
	}
	return Truncate(strings.Join(blocks, "\n\n"), maxChars)
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Builder renders the instruction template in one language.
type Builder struct {
	template string
	fallback string
}

// NewBuilder returns a builder for "ja" (default) or "en".
func NewBuilder(language string) *Builder {
	if language == "en" {
		return &Builder{template: templateEN, fallback: FallbackEN}
	}
	return &Builder{template: templateJA, fallback: FallbackJA}
}

// Build embeds the context block and the literal question into the template.
func (b *Builder) Build(context, question string) string {
	return fmt.Sprintf(b.template, b.fallback, context, question)
}

// Fallback is the sentence the model should answer with when nothing is relevant.
func (b *Builder) Fallback() string { return b.fallback }

// BuildPrompt renders the default Japanese template.
func BuildPrompt(context, question string) string {
	return NewBuilder("ja").Build(context, question)
}
