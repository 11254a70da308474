package server

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithinRoot(t *testing.T) {
	root := filepath.FromSlash("/work/repo")
	testCases := []struct {
		name     string
		rel      string
		expected string
		wantErr  bool
	}{
		{name: "plain", rel: "src/a.go", expected: filepath.Join(root, "src", "a.go")},
		{name: "normalised", rel: "src/../b.go", expected: filepath.Join(root, "b.go")},
		{name: "parent", rel: "../other/a.go", wantErr: true},
		{name: "sneaky parent", rel: "src/../../x", wantErr: true},
		{name: "root itself is allowed", rel: ".", expected: root},
		{name: "dotdot-prefixed name is allowed", rel: "..hidden", expected: filepath.Join(root, "..hidden")},
		{name: "absolute", rel: "/etc/passwd", wantErr: true},
		{name: "empty", rel: "", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveWithinRoot(root, tc.rel)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrOutsideRoot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestResolveWithinRoot_NoRoot(t *testing.T) {
	_, err := ResolveWithinRoot("", "a.go")
	assert.Error(t, err)
}

func TestExecOpener(t *testing.T) {
	assert.Nil(t, ExecOpener(""))
	assert.Nil(t, ExecOpener("   "))
	assert.NotNil(t, ExecOpener("code --reuse-window"))
}
