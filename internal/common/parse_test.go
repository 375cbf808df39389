package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{
			name:  "plain hex",
			input: "deadbeef",
			want:  []byte{0xde, 0xad, 0xbe, 0xef},
		},
		{
			name:  "with 0x prefix",
			input: "0x0102",
			want:  []byte{0x01, 0x02},
		},
		{
			name:  "surrounding whitespace",
			input: "  ff ",
			want:  []byte{0xff},
		},
		{
			name:  "empty string",
			input: "",
			want:  []byte{},
		},
		{
			name:    "odd length",
			input:   "abc",
			wantErr: true,
		},
		{
			name:    "non hex characters",
			input:   "zz",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DecodeHex(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMBConversions(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(3*1024*1024), MBToBytes(3))
	require.Equal(t, uint64(3), BytesToMB(MBToBytes(3)+1))
	require.Equal(t, "warn", ToLowerWithTrim("  WARN "))
}
