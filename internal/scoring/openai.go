package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// ProviderOpenAI is recorded as the score provider
const ProviderOpenAI = "openai"

const systemPrompt = "You are a recruiting assistant that evaluates candidates. You must respond only with valid JSON."

// OpenAI scores applications with a chat completion model
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI oracle for apiKey
func NewOpenAI(apiKey, model string) *OpenAI {
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewOpenAIWithConfig creates an OpenAI oracle from a client config,
// e.g. one pointing at a compatible endpoint
func NewOpenAIWithConfig(cfg openai.ClientConfig, model string) *OpenAI {
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Evaluate implements Oracle
func (o *OpenAI) Evaluate(ctx context.Context, req Request) (*Result, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to call OpenAI API")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in OpenAI response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, errors.Wrap(err, "failed to parse OpenAI response")
	}
	result.Provider = ProviderOpenAI
	result.Model = resp.Model
	if result.Model == "" {
		result.Model = o.model
	}
	return &result, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Evaluate how well the candidate fits the job below.

		Job:
		- Title: %s
		- Description: %s
		- Requirements: %s

		Candidate resume:
		%s
		`, req.JobTitle, req.Description, req.Requirements, resumeOrURL(req))

	if len(req.Responses) > 0 {
		b.WriteString("\nAnswers to the application questions:\n")
		for i, r := range req.Responses {
			fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Question, r.Answer)
		}
	}

	b.WriteString(`
		Score each criterion from 0 to 100. Respond ONLY with a valid JSON object in this exact format:
		{
		"overall_score": number,
		"education_score": number,
		"experience_score": number,
		"question_responses_score": number,
		"details": {"summary": "short reasoning", "strengths": ["..."], "gaps": ["..."]}
		}`)
	return b.String()
}

func resumeOrURL(req Request) string {
	if strings.TrimSpace(req.ResumeText) != "" {
		return req.ResumeText
	}
	return "(resume text unavailable, stored at " + req.ResumeURL + ")"
}
