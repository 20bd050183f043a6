package matching

import (
	"strings"
	"testing"

	"github.com/viant/omnicm/matching/option"
)

func TestManager_IsExcluded_Table(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		isDir    bool
		size     int64
		options  []option.Option
		excluded bool
	}{
		{
			name:     "default pyc hidden",
			path:     "notebooks/mod.pyc",
			excluded: true,
		},
		{
			name:     "default pycache dir hidden",
			path:     "notebooks/__pycache__",
			isDir:    true,
			excluded: true,
		},
		{
			name:     "dir pattern does not hide file of same name",
			path:     "notebooks/__pycache__",
			excluded: false,
		},
		{
			name:     "notebook visible",
			path:     "notebooks/a.ipynb",
			excluded: false,
		},
		{
			name:     "backup suffix hidden",
			path:     "a.txt~",
			excluded: true,
		},
		{
			name:     "nested glob",
			path:     "data/raw/x.csv",
			options:  []option.Option{option.WithExclusionPatterns("**/raw/**")},
			excluded: true,
		},
		{
			name:     "anchored pattern only matches at root",
			path:     "sub/build",
			isDir:    true,
			options:  []option.Option{option.WithExclusionPatterns("/build")},
			excluded: false,
		},
		{
			name:     "anchored pattern at root",
			path:     "build",
			isDir:    true,
			options:  []option.Option{option.WithExclusionPatterns("/build")},
			excluded: true,
		},
		{
			name:     "max size hides large file",
			path:     "big.bin",
			size:     101,
			options:  []option.Option{option.WithMaxFileSize(100)},
			excluded: true,
		},
		{
			name:     "max size ignores directories",
			path:     "big",
			isDir:    true,
			size:     101,
			options:  []option.Option{option.WithMaxFileSize(100)},
			excluded: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.options...)
			if got := m.IsExcluded(tt.path, tt.isDir, tt.size); got != tt.excluded {
				t.Fatalf("IsExcluded(%q)=%v want %v", tt.path, got, tt.excluded)
			}
		})
	}
}

func TestManager_IsExcluded_WithIgnoreFile(t *testing.T) {
	ignore := strings.NewReader(`
# comment
*.log
scratch/
docs/*.md
`)
	m := New(option.WithIgnoreFile(ignore))

	cases := []struct {
		path     string
		isDir    bool
		excluded bool
	}{
		{path: "app/debug.log", excluded: true},
		{path: "scratch", isDir: true, excluded: true},
		{path: "scratch/a.ipynb", excluded: true},
		{path: "docs/readme.md", excluded: true},
		{path: "dir/docs/readme.md", excluded: false},
		{path: "app/main.ipynb", excluded: false},
	}

	for _, tc := range cases {
		if got := m.IsExcluded(tc.path, tc.isDir, 1); got != tc.excluded {
			t.Fatalf("IsExcluded(%q)=%v want %v", tc.path, got, tc.excluded)
		}
	}
}
