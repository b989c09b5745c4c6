package media

import (
	"errors"
	"testing"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"image", ScopeImage, false},
		{"video", ScopeVideo, false},
		{"both", ScopeBoth, false},
		{" Both ", ScopeBoth, false},
		{"", "", true},
		{"audio", "", true},
	}
	for _, tt := range tests {
		got, err := ParseScope(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidScope) {
				t.Errorf("ParseScope(%q): expected ErrInvalidScope, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseScope(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseScope(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScopeIncludes(t *testing.T) {
	if !ScopeBoth.Includes(KindImage) || !ScopeBoth.Includes(KindVideo) {
		t.Error("both should include images and videos")
	}
	if ScopeImage.Includes(KindVideo) {
		t.Error("image scope includes video")
	}
	if ScopeVideo.Includes(KindImage) {
		t.Error("video scope includes image")
	}
	if Scope("nope").Includes(KindImage) {
		t.Error("unknown scope should include nothing")
	}
}

func TestSizeMB(t *testing.T) {
	r := FileRecord{Size: 3 * 1024 * 1024 / 2}
	if got := r.SizeMB(); got != 1.5 {
		t.Errorf("SizeMB: got %v, want 1.5", got)
	}
	if got := BytesToMB(1234567); got != 1.18 {
		t.Errorf("BytesToMB: got %v, want 1.18", got)
	}
}
