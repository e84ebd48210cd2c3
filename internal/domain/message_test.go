package domain

import "testing"

func TestConversationIDOrderIndependent(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{name: "already sorted", a: "a", b: "b", want: "a_b"},
		{name: "reversed", a: "b", b: "a", want: "a_b"},
		{name: "object ids", a: "66f0c2", b: "11aa00", want: "11aa00_66f0c2"},
		{name: "same user", a: "a", b: "a", want: "a_a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConversationID(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("ConversationID(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
			if got != ConversationID(tt.b, tt.a) {
				t.Errorf("ConversationID is order dependent for (%q, %q)", tt.a, tt.b)
			}
		})
	}
}

func TestConversationParticipants(t *testing.T) {
	a, b, ok := ConversationParticipants("alice_bob")
	if !ok || a != "alice" || b != "bob" {
		t.Errorf("ConversationParticipants(alice_bob) = %q, %q, %v", a, b, ok)
	}

	if _, _, ok := ConversationParticipants("noseparator"); ok {
		t.Error("expected malformed id to be rejected")
	}
	if _, _, ok := ConversationParticipants("_b"); ok {
		t.Error("expected empty participant to be rejected")
	}
}
