package models

import (
	"testing"
	"time"
)

func TestInterval_Overlaps_HalfOpen(t *testing.T) {
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", Interval{at(0), at(60)}, Interval{at(0), at(60)}, true},
		{"back to back", Interval{at(0), at(60)}, Interval{at(60), at(120)}, false},
		{"back to back reversed", Interval{at(60), at(120)}, Interval{at(0), at(60)}, false},
		{"partial", Interval{at(0), at(60)}, Interval{at(30), at(90)}, true},
		{"contained", Interval{at(0), at(120)}, Interval{at(30), at(40)}, true},
		{"disjoint", Interval{at(0), at(30)}, Interval{at(45), at(60)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEphemeralSession_Partner(t *testing.T) {
	s := &EphemeralSession{ActorAID: "a", ActorBID: "b"}

	if s.Partner("a") != "b" || s.Partner("b") != "a" {
		t.Fatalf("partner lookup broken: %q %q", s.Partner("a"), s.Partner("b"))
	}
	if s.Partner("c") != "" || s.HasParticipant("c") {
		t.Fatal("stranger must not be a participant")
	}
}

func TestSessionStatus_Terminal(t *testing.T) {
	for _, s := range []SessionStatus{StatusCompleted, StatusCancelled, StatusNoShow} {
		if !s.IsTerminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
	for _, s := range []SessionStatus{StatusScheduled, StatusLive} {
		if s.IsTerminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
	if SessionStatus("PAUSED").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}

func TestScheduledSession_IsParticipant(t *testing.T) {
	tutor := "tutor-user"
	s := &ScheduledSession{LearnerUserID: "learner-user", TutorUserID: &tutor}

	if !s.IsParticipant("learner-user") || !s.IsParticipant("tutor-user") {
		t.Fatal("learner and tutor are participants")
	}
	if s.IsParticipant("someone") {
		t.Fatal("stranger is not a participant")
	}
}
