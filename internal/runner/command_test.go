package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resolverAlwaysMiss(string) (string, bool) { return "", false }
func resolverReturns(dir string) func(string) (string, bool) {
	return func(string) (string, bool) { return dir, true }
}

func TestBuildArgsDefaults(t *testing.T) {
	args := BuildArgs(CommandOptions{
		SandboxMode:     "workspace-write",
		ApprovalPolicy:  "never",
		WorkDir:         "/tmp/work",
		Model:           "gpt-5.2",
		ReasoningEffort: "high",
		Prompt:          "hello",
		GitDirResolver:  resolverAlwaysMiss,
	})
	got := strings.Join(args, " ")
	want := "exec --json --sandbox workspace-write -c approval_policy=never --skip-git-repo-check -C /tmp/work --model gpt-5.2 -c model_reasoning_effort=high hello"
	if got != want {
		t.Errorf("BuildArgs() = %q, want %q", got, want)
	}
}

func TestBuildArgsWithGitDir(t *testing.T) {
	args := BuildArgs(CommandOptions{
		SandboxMode:     "read-only",
		ApprovalPolicy:  "on-request",
		WorkDir:         "/tmp/work",
		Model:           "gpt-5.2",
		ReasoningEffort: "low",
		Prompt:          "hi",
		GitDirResolver:  resolverReturns("/tmp/work/.git"),
	})
	got := strings.Join(args, " ")
	if strings.Contains(got, "--skip-git-repo-check") {
		t.Errorf("BuildArgs() = %q, should not skip when gitdir resolved", got)
	}
	if !strings.Contains(got, "--add-dir /tmp/work/.git") {
		t.Errorf("BuildArgs() = %q, want --add-dir with resolved gitdir", got)
	}
}

func TestBuildArgsResume(t *testing.T) {
	args := BuildArgs(CommandOptions{
		SandboxMode:     "workspace-write",
		ApprovalPolicy:  "never",
		WorkDir:         "/tmp/work",
		Model:           "gpt-5.2",
		ReasoningEffort: "high",
		Resume:          true,
		ThreadID:        "thread-123",
		Prompt:          "more",
		GitDirResolver:  resolverAlwaysMiss,
	})
	got := strings.Join(args, " ")
	if !strings.Contains(got, "resume thread-123") {
		t.Errorf("BuildArgs() = %q, want resume clause", got)
	}
	idx := strings.Index(got, "resume thread-123")
	promptIdx := strings.LastIndex(got, " more")
	if idx == -1 || promptIdx == -1 || idx > promptIdx {
		t.Errorf("BuildArgs() = %q, resume clause must precede prompt", got)
	}
}

func TestBuildArgsResumeWithoutThreadIDOmitted(t *testing.T) {
	args := BuildArgs(CommandOptions{
		SandboxMode:     "workspace-write",
		ApprovalPolicy:  "never",
		WorkDir:         "/tmp/work",
		Model:           "gpt-5.2",
		ReasoningEffort: "high",
		Resume:          true,
		ThreadID:        "",
		Prompt:          "hello",
		GitDirResolver:  resolverAlwaysMiss,
	})
	if strings.Contains(strings.Join(args, " "), "resume") {
		t.Error("BuildArgs() included resume clause with no thread id")
	}
}

func TestBuildArgsPromptStartingWithDash(t *testing.T) {
	args := BuildArgs(CommandOptions{
		SandboxMode:     "workspace-write",
		ApprovalPolicy:  "never",
		WorkDir:         "/tmp/work",
		Model:           "gpt-5.2",
		ReasoningEffort: "high",
		Prompt:          "-rf everything",
		GitDirResolver:  resolverAlwaysMiss,
	})
	last2 := args[len(args)-2:]
	if last2[0] != "--" || last2[1] != "-rf everything" {
		t.Errorf("BuildArgs() tail = %v, want [-- -rf everything]", last2)
	}
}

func TestDefaultGitDirResolverDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, ok := DefaultGitDirResolver(dir)
	if !ok || got != filepath.Join(dir, ".git") {
		t.Errorf("DefaultGitDirResolver() = (%q, %v), want (%q, true)", got, ok, filepath.Join(dir, ".git"))
	}
}

func TestDefaultGitDirResolverWorktreeFile(t *testing.T) {
	dir := t.TempDir()
	realGitDir := t.TempDir()
	gitFile := filepath.Join(dir, ".git")
	if err := os.WriteFile(gitFile, []byte("gitdir: "+realGitDir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, ok := DefaultGitDirResolver(dir)
	if !ok || got != realGitDir {
		t.Errorf("DefaultGitDirResolver() = (%q, %v), want (%q, true)", got, ok, realGitDir)
	}
}

func TestDefaultGitDirResolverNoGit(t *testing.T) {
	dir := t.TempDir()
	if _, ok := DefaultGitDirResolver(dir); ok {
		t.Error("DefaultGitDirResolver() = true for a directory with no .git")
	}
}

func TestGuardPromptDashesRejectsEmpty(t *testing.T) {
	if err := GuardPromptDashes("   "); err == nil {
		t.Error("GuardPromptDashes() = nil for blank prompt, want error")
	}
	if err := GuardPromptDashes("hi"); err != nil {
		t.Errorf("GuardPromptDashes() = %v, want nil", err)
	}
}
