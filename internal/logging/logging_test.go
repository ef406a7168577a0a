package logging

import "testing"

func TestInitMarksInitialized(t *testing.T) {
	Init("debug", false)
	if !IsInitialized() {
		t.Error("expected IsInitialized() to be true after Init()")
	}
}

func TestInitAcceptsInvalidLevelWithoutPanicking(t *testing.T) {
	Init("not-a-real-level", false)
	if !IsInitialized() {
		t.Error("expected IsInitialized() to be true even after an invalid level")
	}
}

func TestWithComponentIsSafeForRepeatedCalls(t *testing.T) {
	Init("info", true)
	a := WithComponent("store")
	b := WithComponent("accounts")
	if a.GetLevel() != b.GetLevel() {
		t.Errorf("expected component loggers to share the global level, got %v vs %v", a.GetLevel(), b.GetLevel())
	}
}
