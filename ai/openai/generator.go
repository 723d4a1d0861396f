// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/websift/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// generationTemperature is used for both summary and retrieval-context
// generation. Low but nonzero so output stays grounded in the input text
// without being fully deterministic.
const generationTemperature = 0.3

// MetadataGenerator implements ai.MetadataGenerator using OpenAI-compatible
// chat APIs. Each method issues a single chat completion bounded by the
// configured token limits.
type MetadataGenerator struct {
	client           llms.Model
	summaryMaxTokens int
	contextMaxTokens int
	logger           *slog.Logger
}

// newMetadataGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newMetadataGenerator(config *ai.Config) (*MetadataGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create OpenAI client configured for chat/generation
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken("none"),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &MetadataGenerator{
		client:           client,
		summaryMaxTokens: config.SummaryMaxTokens,
		contextMaxTokens: config.ContextMaxTokens,
		logger:           slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewMetadataGenerator creates a new metadata generator using the provided
// configuration.
//
// Returns ai.MetadataGenerator interface to enforce abstraction.
func NewMetadataGenerator(config *ai.Config) (ai.MetadataGenerator, error) {
	return newMetadataGenerator(config)
}

// Summarize generates a concise summary of the given text.
func (g *MetadataGenerator) Summarize(ctx context.Context, text string) (string, error) {
	g.logger.Debug("generating summary", "length", len(text))
	return g.generate(ctx, summarySystemPrompt, text, g.summaryMaxTokens)
}

// RetrievalContext generates a short passage situating the given text within
// the larger document it came from, to be prepended at retrieval time.
func (g *MetadataGenerator) RetrievalContext(ctx context.Context, text string) (string, error) {
	g.logger.Debug("generating retrieval context", "length", len(text))
	return g.generate(ctx, retrievalContextSystemPrompt, text, g.contextMaxTokens)
}

// generate issues a single chat completion with the given system prompt and
// returns the trimmed first choice.
func (g *MetadataGenerator) generate(ctx context.Context, systemPrompt, text string, maxTokens int) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(generationTemperature),
		llms.WithMaxTokens(maxTokens))
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		g.logger.Debug("no choices returned from model")
		return "", nil
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
