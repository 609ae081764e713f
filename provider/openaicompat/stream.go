package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	paperbase "github.com/dqviet/paperbase"
)

// StreamSSE reads an SSE stream from body, sends text deltas to ch, and
// returns the fully accumulated response (content + usage).
//
// The channel is closed when streaming completes. The context cancels
// channel sends if the consumer is no longer interested; the content
// accumulated up to that point is returned alongside ctx.Err() so callers
// can persist a truncated answer.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	data: [DONE]\n
func StreamSSE(ctx context.Context, body io.Reader, ch chan<- string) (paperbase.ChatResponse, error) {
	defer close(ch)

	scanner := bufio.NewScanner(body)
	// Increase buffer for large SSE payloads.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var fullContent strings.Builder
	var usage paperbase.Usage

	for scanner.Scan() {
		line := scanner.Text()

		// SSE lines that carry data start with "data: ".
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		// End-of-stream sentinel.
		if data == "[DONE]" {
			break
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks.
			continue
		}

		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}

		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		fullContent.WriteString(delta)
		select {
		case ch <- delta:
		case <-ctx.Done():
			return paperbase.ChatResponse{Content: fullContent.String(), Usage: usage}, ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return paperbase.ChatResponse{Content: fullContent.String(), Usage: usage}, err
	}

	return paperbase.ChatResponse{Content: fullContent.String(), Usage: usage}, nil
}
