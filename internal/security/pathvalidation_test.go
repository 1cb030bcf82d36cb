package security

import "testing"

func TestValidatePathWithinDirectory(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		dir     string
		wantErr bool
	}{
		{"direct child", "/uploads/a.mp4", "/uploads", false},
		{"nested child", "/uploads/sub/a.mp4", "/uploads", false},
		{"dir itself", "/uploads", "/uploads", false},
		{"dot segments resolved inside", "/uploads/sub/../a.mp4", "/uploads", false},
		{"parent escape", "/uploads/../etc/passwd", "/uploads", true},
		{"sibling dir", "/other/a.mp4", "/uploads", true},
		{"bare parent", "/uploads/..", "/uploads", true},
		{"relative escape", "../a.mp4", "uploads", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, tt.dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q, %q) error = %v, wantErr %v",
					tt.path, tt.dir, err, tt.wantErr)
			}
		})
	}
}

func TestSafeExt(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"video.mp4", ".mp4"},
		{"video.MOV", ".MOV"},
		{"archive.tar.gz", ".gz"},
		{"noext", ".mp4"},
		{"trailingdot.", ".mp4"},
		{"weird.mp4;rm -rf", ".mp4"},
		{"../../../etc/passwd", ".mp4"},
		{"dir/video.avi", ".avi"},
	}

	for _, tt := range tests {
		if got := SafeExt(tt.filename, ".mp4"); got != tt.want {
			t.Errorf("SafeExt(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
