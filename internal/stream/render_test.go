package stream

import (
	"strings"
	"testing"
)

func TestRenderBasicAssembly(t *testing.T) {
	p := presentation{HeaderHTML: "<b>Header</b>", HeaderPlain: "Header", Footer: "Footer text"}
	segs := []Segment{{Kind: SegmentText, Content: "hello"}}

	got := render(p, segs)
	if !strings.Contains(got, "<b>Header</b>") {
		t.Errorf("render() = %q, missing header", got)
	}
	if !strings.Contains(got, "hello") {
		t.Errorf("render() = %q, missing log content", got)
	}
	if !strings.Contains(got, "Footer text") {
		t.Errorf("render() = %q, missing footer", got)
	}
}

func TestRenderOmitsEmptyParts(t *testing.T) {
	p := presentation{}
	segs := []Segment{{Kind: SegmentText, Content: "only log"}}
	got := render(p, segs)
	if strings.HasPrefix(got, "\n\n") {
		t.Errorf("render() = %q, should not lead with blank-line join when header empty", got)
	}
}

func TestRenderTailTruncationAddsMarker(t *testing.T) {
	var segs []Segment
	for i := 0; i < 50; i++ {
		segs = append(segs, Segment{Kind: SegmentText, Content: strings.Repeat("x", 100)})
	}
	p := presentation{}
	got := render(p, segs)
	if !strings.Contains(got, "previous output hidden") {
		t.Errorf("render() = %q, want hidden-output marker for truncated tail", got)
	}
	if len(got) > maxChars {
		t.Errorf("len(render()) = %d, want <= %d", len(got), maxChars)
	}
}

func TestRenderWrapLogInPre(t *testing.T) {
	p := presentation{WrapLogInPre: true}
	segs := []Segment{{Kind: SegmentText, Content: "a"}, {Kind: SegmentCode, Content: "b"}}
	got := render(p, segs)
	if strings.Count(got, "<pre><code>") != 1 {
		t.Errorf("render() = %q, want exactly one wrapped pre block", got)
	}
}

func TestRenderWithinCharBudget(t *testing.T) {
	var segs []Segment
	for i := 0; i < 200; i++ {
		segs = append(segs, Segment{Kind: SegmentText, Content: strings.Repeat("<&>", 50)})
	}
	p := presentation{HeaderHTML: "Header", HeaderPlain: "Header", Footer: "Footer"}
	got := render(p, segs)
	if len(got) > maxChars {
		t.Errorf("len(render()) = %d, want <= %d even with HTML-escape expansion", len(got), maxChars)
	}
}

func TestMergeAdjacentText(t *testing.T) {
	segs := []Segment{
		{Kind: SegmentText, Content: "a"},
		{Kind: SegmentText, Content: "b"},
		{Kind: SegmentCode, Content: "c"},
		{Kind: SegmentText, Content: "d"},
	}
	got := mergeAdjacentText(segs)
	if len(got) != 3 {
		t.Fatalf("len(merged) = %d, want 3", len(got))
	}
	if got[0].Content != "ab" {
		t.Errorf("merged[0].Content = %q, want %q", got[0].Content, "ab")
	}
}
