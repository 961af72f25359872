package domain

import (
	"testing"
	"time"
)

func TestSession_DeactivateOnce(t *testing.T) {
	s := &Session{ID: "s1", Active: true, Version: 3}
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	if !s.Deactivate(at) {
		t.Fatal("first Deactivate should report a transition")
	}
	if s.Active {
		t.Error("session should be inactive")
	}
	if s.LogoutTime == nil || !s.LogoutTime.Equal(at) {
		t.Errorf("LogoutTime = %v, want %v", s.LogoutTime, at)
	}
	if s.Version != 4 {
		t.Errorf("Version = %d, want 4", s.Version)
	}

	if s.Deactivate(at.Add(time.Hour)) {
		t.Error("second Deactivate should be a no-op")
	}
	if !s.LogoutTime.Equal(at) || s.Version != 4 {
		t.Error("second Deactivate must not change the session")
	}
}
