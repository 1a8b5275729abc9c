package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("underlying")

	transient := Transient("fetch", base)
	if !IsTransient(transient) {
		t.Error("expected transient error to classify as transient")
	}
	if IsPermanent(transient) || IsFatal(transient) {
		t.Error("transient error misclassified")
	}

	permanent := Permanent("post", base)
	if !IsPermanent(permanent) {
		t.Error("expected permanent error to classify as permanent")
	}
	if IsTransient(permanent) {
		t.Error("permanent error misclassified as transient")
	}

	fatal := Fatal("connect", base)
	if !IsFatal(fatal) {
		t.Error("expected fatal error to classify as fatal")
	}
}

func TestErrorClassificationThroughWrapping(t *testing.T) {
	err := fmt.Errorf("poll feed: %w", Transient("fetch", errors.New("timeout")))
	if !IsTransient(err) {
		t.Error("classification must survive fmt.Errorf wrapping")
	}
	if !errors.Is(fmt.Errorf("start: %w", ErrInvalidState), ErrInvalidState) {
		t.Error("sentinel must survive wrapping")
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("underlying")
	if !errors.Is(Transient("op", base), base) {
		t.Error("expected transient error to unwrap to its cause")
	}
	if !errors.Is(&ParseError{FeedID: "f", Err: base}, base) {
		t.Error("expected parse error to unwrap to its cause")
	}
}

func TestActionKeyDeterministic(t *testing.T) {
	a := ActionKey("announce", "youtube", "yt:video:abc")
	b := ActionKey("announce", "youtube", "yt:video:abc")
	if a != b {
		t.Errorf("keys for identical parts differ: %q vs %q", a, b)
	}
	if a == ActionKey("announce", "youtube", "yt:video:def") {
		t.Error("keys for different items must differ")
	}
}

func TestAnnounceActionKeyStable(t *testing.T) {
	item := FeedItem{FeedID: "youtube", ItemID: "v1", Title: "t", URL: "u"}
	first := AnnounceAction(item, "chan")
	second := AnnounceAction(item, "chan")
	if first.Key != second.Key {
		t.Error("announce key must be stable for the same item")
	}
}
