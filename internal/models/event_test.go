package models

import (
	"testing"
	"time"
)

func TestNormalizeKeyPart(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and hyphenates",
			input:    "KI Stammtisch",
			expected: "ki-stammtisch",
		},
		{
			name:     "strips non-alphanumerics",
			input:    "Café X (Altstadt)!",
			expected: "caf-x-altstadt",
		},
		{
			name:     "collapses whitespace runs",
			input:    "  AI   Meetup \t Tirol ",
			expected: "ai-meetup-tirol",
		},
		{
			name:     "keeps digits",
			input:    "Workshop 2026",
			expected: "workshop-2026",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "no trailing hyphen",
			input:    "Meetup!!!",
			expected: "meetup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeKeyPart(tt.input); got != tt.expected {
				t.Errorf("NormalizeKeyPart(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEventKey_Deterministic(t *testing.T) {
	// Identical normalized inputs must collapse to the same identity key
	// regardless of which source the candidate came from.
	a := EventKey("KI Stammtisch", "2026-03-15", "Innsbruck")
	b := EventKey("ki  stammtisch", "2026-03-15", "INNSBRUCK")

	if a != b {
		t.Errorf("expected identical keys, got %q and %q", a, b)
	}

	c := EventKey("KI Stammtisch", "2026-03-16", "Innsbruck")
	if a == c {
		t.Errorf("different dates must not share a key: %q", a)
	}
}

func TestEventRecord_Key_UsesLocationOrCity(t *testing.T) {
	withLocation := EventRecord{Title: "Meetup", Date: "2026-05-01", Location: "Cafe X", City: "Innsbruck"}
	withoutLocation := EventRecord{Title: "Meetup", Date: "2026-05-01", City: "Innsbruck"}

	if withLocation.Key() == withoutLocation.Key() {
		t.Error("location should participate in the identity key when present")
	}
	if got, want := withoutLocation.Key(), EventKey("Meetup", "2026-05-01", "Innsbruck"); got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestSweepKey_IgnoresLocation(t *testing.T) {
	a := EventRecord{Title: "Meetup", Date: "2026-05-01", Location: "Cafe X"}
	b := EventRecord{Title: "Meetup", Date: "2026-05-01", Location: "Cafe Y"}

	if SweepKey(a.Title, a.Date) != SweepKey(b.Title, b.Date) {
		t.Error("sweep key must not include the location")
	}
}

func TestSetStatus_Transitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{name: "pending to approved", from: StatusPending, to: StatusApproved},
		{name: "pending to rejected", from: StatusPending, to: StatusRejected},
		{name: "approved is terminal", from: StatusApproved, to: StatusRejected, wantErr: true},
		{name: "rejected is terminal", from: StatusRejected, to: StatusApproved, wantErr: true},
		{name: "cannot return to pending", from: StatusPending, to: StatusPending, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := EventRecord{Status: tt.from}
			err := rec.SetStatus(tt.to, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetStatus(%s) error = %v, wantErr %v", tt.to, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if rec.Status != tt.to {
				t.Errorf("status = %s, want %s", rec.Status, tt.to)
			}
			if rec.StatusUpdatedAt == nil || !rec.StatusUpdatedAt.Equal(now) {
				t.Error("StatusUpdatedAt not set on transition")
			}
			switch tt.to {
			case StatusApproved:
				if rec.ApprovedAt == nil {
					t.Error("ApprovedAt not set")
				}
			case StatusRejected:
				if rec.RejectedAt == nil {
					t.Error("RejectedAt not set")
				}
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
	}{
		{"AI", CategoryAI},
		{"ki", CategoryAI},
		{"Tech", CategoryTech},
		{"startups", CategoryStartup},
		{"Business", CategoryBusiness},
		{"workshop", CategoryEducation},
		{"gibberish", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		if got := ParseCategory(tt.input); got != tt.expected {
			t.Errorf("ParseCategory(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestTruncateDescription(t *testing.T) {
	long := make([]rune, 0, 300)
	for i := 0; i < 300; i++ {
		long = append(long, 'ä')
	}

	got := TruncateDescription(string(long))
	if len([]rune(got)) != MaxDescriptionLen {
		t.Errorf("truncated length = %d runes, want %d", len([]rune(got)), MaxDescriptionLen)
	}

	short := "Kostenlos für alle"
	if TruncateDescription(short) != short {
		t.Error("short descriptions must pass through unchanged")
	}
}
