package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanResource(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "plugin.xml", want: "plugin.xml"},
		{in: "/bin/lib.so", want: "bin/lib.so"},
		{in: "bin/./sub/../lib.so", want: "bin/lib.so"},
		{in: "../etc/passwd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanResource(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBinPattern(t *testing.T) {
	assert.Equal(t, "bin/**/*.so", BinPattern(".so"))
}
