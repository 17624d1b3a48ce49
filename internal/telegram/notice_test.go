package telegram

import "testing"

func TestBuildNoticeTextFitsWithinBudgetForLongPrompt(t *testing.T) {
	prompt := make([]byte, 20000)
	for i := range prompt {
		prompt[i] = 'x'
	}
	got := buildNoticeText("alpha", "/home/user/project", string(prompt))
	if len(got) > noticeMaxLen {
		t.Errorf("len(buildNoticeText()) = %d, want <= %d", len(got), noticeMaxLen)
	}
}

func TestBuildNoticeTextKeepsShortPromptIntact(t *testing.T) {
	got := buildNoticeText("alpha", "/home/user/project", "do the thing")
	if len(got) > noticeMaxLen {
		t.Errorf("len(buildNoticeText()) = %d, want <= %d", len(got), noticeMaxLen)
	}
	if got == "" {
		t.Error("buildNoticeText() returned empty string")
	}
}
