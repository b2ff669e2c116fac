package filter

import (
	"errors"
	"net/url"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  int64
	}{
		{"single", []string{"club_floor"}, 1 << 19},
		{"same group combines", []string{"CLUB_FLOOR", "No_Smoking"}, 1<<19 | 1<<20},
		{"label", []string{"禁煙"}, 1 << 20},
		{"duplicates are idempotent", []string{"no_smoking", "NO_SMOKING"}, 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masks, err := Encode(tt.names)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if got := masks[GroupRoomAttribute]; got != tt.want {
				t.Errorf("acr mask: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEncodeEmpty(t *testing.T) {
	masks, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(masks) != 0 {
		t.Errorf("expected no masks, got %v", masks)
	}
}

func TestEncodeUnknown(t *testing.T) {
	_, err := Encode([]string{"CLUB_FLOOR", "ocean_view"})

	var unknown *UnknownFilterError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFilterError, got %v", err)
	}
	if unknown.Name != "ocean_view" {
		t.Errorf("name: got %q", unknown.Name)
	}
}

func TestMasksApply(t *testing.T) {
	masks, err := Encode([]string{"club_floor", "no_smoking"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	q := url.Values{}
	q.Set("aid", "123")
	masks.Apply(q)

	if got := q.Get("acr"); got != "1572864" {
		t.Errorf("acr: got %q, want 1572864", got)
	}
	if q.Get("aid") != "123" {
		t.Error("existing parameters must be kept")
	}
}
