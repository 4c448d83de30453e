package storage

import (
	"testing"
	"time"
)

func TestParseExtList(t *testing.T) {
	t.Run("comma_separated", func(t *testing.T) {
		exts := ParseExtList(".mp3,.wav,.m4a")
		if len(exts) != 3 {
			t.Fatalf("len = %d, want 3", len(exts))
		}
		for _, want := range []string{".mp3", ".wav", ".m4a"} {
			if !exts[want] {
				t.Errorf("missing %s", want)
			}
		}
	})

	t.Run("normalizes_case_and_dots", func(t *testing.T) {
		exts := ParseExtList("MP3, .Wav")
		if !exts[".mp3"] {
			t.Error("MP3 should normalize to .mp3")
		}
		if !exts[".wav"] {
			t.Error(".Wav should normalize to .wav")
		}
	})

	t.Run("empty_list_is_nil", func(t *testing.T) {
		if ParseExtList("") != nil {
			t.Error("empty list should return nil")
		}
		if ParseExtList(" , ") != nil {
			t.Error("blank entries should return nil")
		}
	})
}

func TestMatchesExt(t *testing.T) {
	exts := ParseExtList(".mp3,.wav")

	tests := []struct {
		name string
		file string
		want bool
	}{
		{"listed_ext", "lecture.mp3", true},
		{"listed_ext_upper", "lecture.MP3", true},
		{"unlisted_ext", "lecture.flac", false},
		{"no_ext", "lecture", false},
		{"nested_key", "2024/lecture.wav", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesExt(exts, tt.file); got != tt.want {
				t.Errorf("matchesExt(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}

	t.Run("nil_set_matches_everything", func(t *testing.T) {
		if !matchesExt(nil, "anything.xyz") {
			t.Error("nil set should match any file")
		}
	})
}

func TestRecordingStem(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"plain", "algebra-01.mp3", "algebra-01"},
		{"nested", "2024/fall/algebra-01.m4a", "algebra-01"},
		{"no_ext", "algebra-01", "algebra-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Recording{Key: tt.key, ModTime: time.Now()}
			if got := r.Stem(); got != tt.want {
				t.Errorf("Stem() = %q, want %q", got, tt.want)
			}
		})
	}
}
