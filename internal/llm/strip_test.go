package llm

import "testing"

func TestStripThinkBlocks(t *testing.T) {
	// Removes a single think block.
	if got := StripThinkBlocks("<think>hmm</think>answer"); got != "answer" {
		t.Errorf("got %q, want %q", got, "answer")
	}
	// Removes multiple think blocks.
	if got := StripThinkBlocks("<think>a</think>x<think>b</think>y"); got != "xy" {
		t.Errorf("got %q, want %q", got, "xy")
	}
	// Strips an unclosed block to end of string.
	if got := StripThinkBlocks("result<think>never closed"); got != "result" {
		t.Errorf("got %q, want %q", got, "result")
	}
	// No tags: unchanged.
	if got := StripThinkBlocks("plain"); got != "plain" {
		t.Errorf("got %q, want %q", got, "plain")
	}
}

func TestStripFences(t *testing.T) {
	in := "```json\n{\"a\": 1}\n```"
	if got := StripFences(in); got != `{"a": 1}` {
		t.Errorf("got %q, want %q", got, `{"a": 1}`)
	}
	// Unfenced input is returned trimmed.
	if got := StripFences("  {\"a\": 1}  "); got != `{"a": 1}` {
		t.Errorf("got %q, want %q", got, `{"a": 1}`)
	}
}
