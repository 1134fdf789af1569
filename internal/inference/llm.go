package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"basegraph.app/ingest/common/llm"
)

const decisionSystemPrompt = `You analyze development workflow events (pull requests, reviews, commits, issues, chat messages, sprints) and decide whether the event contains or implies a technical or architectural decision.

If it does, extract the decision with its context:
- title: a brief title
- description: what was decided and its technical context
- rationale: why this approach was chosen
- alternatives_considered: options that were weighed and rejected
- tags: short topical labels such as architecture, performance, security
- confidence_score: 0.0 to 1.0, how sure you are this is a real decision
- participants: usernames involved

If no decision is present, set is_decision to false and leave the decision fields empty.
Do not invent facts that are not in the event.`

type llmAnswer struct {
	IsDecision bool     `json:"is_decision"`
	Decision   Decision `json:"decision"`
}

var llmAnswerSchema = llm.GenerateSchema[llmAnswer]()

// LLM infers decisions with a single structured completion.
type LLM struct {
	client    llm.Client
	maxTokens int
}

func NewLLM(client llm.Client, maxTokens int) *LLM {
	return &LLM{client: client, maxTokens: maxTokens}
}

func (l *LLM) Infer(ctx context.Context, summary Summary) (*Decision, error) {
	eventData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}

	var answer llmAnswer
	resp, err := l.client.Chat(ctx, llm.Request{
		SystemPrompt: decisionSystemPrompt,
		UserPrompt:   "## Event Data\n" + string(eventData),
		UserName:     summary.AuthorName,
		SchemaName:   "decision_analysis",
		Schema:       llmAnswerSchema,
		MaxTokens:    l.maxTokens,
		Temperature:  llm.Temp(0),
	}, &answer)
	if err != nil {
		return nil, fmt.Errorf("decision analysis for event %s: %w", summary.EventID, err)
	}

	slog.DebugContext(ctx, "decision analysis completed",
		"model", l.client.Model(),
		"is_decision", answer.IsDecision,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	if !answer.IsDecision {
		return nil, nil
	}

	decision := answer.Decision
	decision.normalize()
	return &decision, nil
}
