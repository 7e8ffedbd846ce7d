package orchestrator

import "testing"

func TestTranscriptStoreUpdateLiveReflectsInContext(t *testing.T) {
	store := NewTranscriptStore(0)
	store.UpdateLive("hello wor", 0.6, 100)

	ctx := store.GetContext()
	if ctx.LiveText != "hello wor" {
		t.Errorf("expected live text 'hello wor', got %q", ctx.LiveText)
	}
	if ctx.ConfirmedText != "" {
		t.Errorf("expected empty confirmed text, got %q", ctx.ConfirmedText)
	}
	if ctx.AssembledText != "hello wor" {
		t.Errorf("expected assembled text 'hello wor', got %q", ctx.AssembledText)
	}
	if !ctx.HasContent {
		t.Error("expected HasContent true")
	}
}

func TestTranscriptStoreConfirmBufferClearsLive(t *testing.T) {
	store := NewTranscriptStore(0)
	store.UpdateLive("hello wor", 0.6, 100)

	seg := store.ConfirmBuffer("hello world", 0.95, 150)
	if seg.Text != "hello world" || seg.Finality != FinalityConfirmed || seg.EndMS != 150 {
		t.Errorf("unexpected confirmed segment: %+v", seg)
	}

	ctx := store.GetContext()
	if ctx.LiveText != "" {
		t.Errorf("expected live text cleared, got %q", ctx.LiveText)
	}
	if ctx.ConfirmedText != "hello world" {
		t.Errorf("expected confirmed text 'hello world', got %q", ctx.ConfirmedText)
	}
}

func TestTranscriptStoreAssembledTextJoinsConfirmedAndLive(t *testing.T) {
	store := NewTranscriptStore(0)
	store.ConfirmBuffer("first sentence.", 0.9, 100)
	store.UpdateLive("second in prog", 0.5, 200)

	ctx := store.GetContext()
	if ctx.AssembledText != "first sentence. second in prog" {
		t.Errorf("unexpected assembled text: %q", ctx.AssembledText)
	}
}

func TestTranscriptStoreMaxBoundDropsOldest(t *testing.T) {
	store := NewTranscriptStore(2)
	store.ConfirmBuffer("one", 0.9, 10)
	store.ConfirmBuffer("two", 0.9, 20)
	store.ConfirmBuffer("three", 0.9, 30)

	segs := store.ConfirmedSegments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments retained, got %d", len(segs))
	}
	if segs[0].Text != "two" || segs[1].Text != "three" {
		t.Errorf("expected oldest dropped, got %+v", segs)
	}
}

func TestTranscriptStoreClear(t *testing.T) {
	store := NewTranscriptStore(0)
	store.ConfirmBuffer("hello", 0.9, 10)
	store.UpdateLive("wor", 0.5, 20)

	store.Clear()

	ctx := store.GetContext()
	if ctx.HasContent {
		t.Error("expected HasContent false after Clear")
	}
	if len(store.ConfirmedSegments()) != 0 {
		t.Error("expected no confirmed segments after Clear")
	}
}

func TestTranscriptStoreHasContentFalseWhenEmpty(t *testing.T) {
	store := NewTranscriptStore(0)
	ctx := store.GetContext()
	if ctx.HasContent {
		t.Error("expected HasContent false for a fresh store")
	}
	if ctx.AssembledText != "" {
		t.Errorf("expected empty assembled text, got %q", ctx.AssembledText)
	}
}

func TestTranscriptStoreTrimsWhitespaceWhenJoining(t *testing.T) {
	store := NewTranscriptStore(0)
	store.ConfirmBuffer("  padded  ", 0.9, 10)
	store.ConfirmBuffer("", 0.9, 20)
	store.ConfirmBuffer("second", 0.9, 30)

	ctx := store.GetContext()
	if ctx.ConfirmedText != "padded second" {
		t.Errorf("expected whitespace trimmed and empty segments skipped, got %q", ctx.ConfirmedText)
	}
}
