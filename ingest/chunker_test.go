package ingest

import (
	"strings"
	"testing"

	paperbase "github.com/dqviet/paperbase"
)

func TestSentenceChunker_SmallPageYieldsOneChunk(t *testing.T) {
	c := NewSentenceChunker(paperbase.NewWordTokenizer(), WithFineChunkSize(500))
	chunks := c.Chunk([]Page{{Number: 1, Text: "A fact here. Another fact."}})

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	got := chunks[0]
	if got.ID != "sent_0" {
		t.Errorf("id = %s, want sent_0", got.ID)
	}
	if got.SentenceCount != 2 {
		t.Errorf("sentence count = %d, want 2", got.SentenceCount)
	}
	if got.PageStart != 1 || got.PageEnd != 1 {
		t.Errorf("pages = %d-%d, want 1-1", got.PageStart, got.PageEnd)
	}
	if got.Level != paperbase.LevelFine {
		t.Errorf("level = %s, want %s", got.Level, paperbase.LevelFine)
	}
	if got.Text != "A fact here. Another fact." {
		t.Errorf("text = %q", got.Text)
	}
}

func TestSentenceChunker_EmptyInput(t *testing.T) {
	c := NewSentenceChunker(paperbase.NewWordTokenizer())
	if chunks := c.Chunk(nil); chunks != nil {
		t.Errorf("got %v, want nil", chunks)
	}
	if chunks := c.Chunk([]Page{{Number: 1, Text: "   "}}); chunks != nil {
		t.Errorf("got %v for blank page, want nil", chunks)
	}
}

func TestSentenceChunker_OverlapSeedsNextChunk(t *testing.T) {
	// Each sentence is 4 tokens ("Sentence [word] one ."). Budget of 9
	// fits two sentences per chunk; overlap of 1 repeats the last sentence.
	text := "Sentence alpha one. Sentence bravo two. Sentence charlie three. Sentence delta four."
	c := NewSentenceChunker(paperbase.NewWordTokenizer(),
		WithFineChunkSize(9), WithOverlapSentences(1))
	chunks := c.Chunk([]Page{{Number: 1, Text: text}})

	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prevSentences := strings.SplitAfter(chunks[i-1].Text, ".")
		var lastSentence string
		for j := len(prevSentences) - 1; j >= 0; j-- {
			if s := strings.TrimSpace(prevSentences[j]); s != "" {
				lastSentence = s
				break
			}
		}
		if !strings.HasPrefix(chunks[i].Text, lastSentence) {
			t.Errorf("chunk %d does not start with previous chunk's last sentence %q: %q",
				i, lastSentence, chunks[i].Text)
		}
	}
}

func TestSentenceChunker_ZeroOverlapNoRepeat(t *testing.T) {
	text := "Sentence alpha one. Sentence bravo two. Sentence charlie three. Sentence delta four."
	c := NewSentenceChunker(paperbase.NewWordTokenizer(),
		WithFineChunkSize(9), WithOverlapSentences(0))
	chunks := c.Chunk([]Page{{Number: 1, Text: text}})

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != "Sentence alpha one. Sentence bravo two." {
		t.Errorf("chunk 0 = %q", chunks[0].Text)
	}
	if chunks[1].Text != "Sentence charlie three. Sentence delta four." {
		t.Errorf("chunk 1 = %q", chunks[1].Text)
	}
}

func TestSentenceChunker_OversizedSentenceKeptWhole(t *testing.T) {
	long := strings.Repeat("word ", 50) + "end."
	c := NewSentenceChunker(paperbase.NewWordTokenizer(), WithFineChunkSize(10))
	chunks := c.Chunk([]Page{{Number: 1, Text: "Short one. " + long}})

	for _, ch := range chunks {
		if ch.SentenceCount == 0 {
			t.Error("chunk with zero sentences")
		}
	}
	// The oversized sentence must appear intact in exactly one chunk.
	found := 0
	for _, ch := range chunks {
		if strings.Contains(ch.Text, strings.TrimSpace(long)) {
			found++
		}
	}
	if found != 1 {
		t.Errorf("oversized sentence found in %d chunks, want 1 (never split)", found)
	}
}

func TestSentenceChunker_PageRangeSpansBoundary(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "Page one sentence here."},
		{Number: 2, Text: "Page two sentence here."},
	}
	c := NewSentenceChunker(paperbase.NewWordTokenizer(), WithFineChunkSize(500))
	chunks := c.Chunk(pages)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].PageStart != 1 || chunks[0].PageEnd != 2 {
		t.Errorf("pages = %d-%d, want 1-2", chunks[0].PageStart, chunks[0].PageEnd)
	}
}

func TestSentenceChunker_IDsSequentialPerInvocation(t *testing.T) {
	text := "Sentence alpha one. Sentence bravo two. Sentence charlie three. Sentence delta four."
	c := NewSentenceChunker(paperbase.NewWordTokenizer(),
		WithFineChunkSize(9), WithOverlapSentences(0))

	for run := 0; run < 2; run++ {
		chunks := c.Chunk([]Page{{Number: 1, Text: text}})
		for i, ch := range chunks {
			want := "sent_" + string(rune('0'+i))
			if ch.ID != want {
				t.Errorf("run %d chunk %d id = %s, want %s", run, i, ch.ID, want)
			}
		}
	}
}
