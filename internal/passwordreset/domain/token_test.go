package domain

import (
	"testing"
	"time"
)

func TestToken_Usable(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := &Token{ExpiresAt: exp}

	if !tok.Usable(exp.Add(-time.Minute)) {
		t.Error("token should be usable before expiry")
	}
	if !tok.Usable(exp) {
		t.Error("token should be usable at the expiry instant")
	}
	if tok.Usable(exp.Add(time.Nanosecond)) {
		t.Error("token should not be usable after expiry")
	}
	tok.Used = true
	if tok.Usable(exp.Add(-time.Minute)) {
		t.Error("used token should not be usable")
	}
}
