package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes_Humanized_Boundaries(t *testing.T) {
	cases := []struct {
		in   Bytes
		want string
	}{
		{Bytes(0), "0 B"},
		{Bytes(1023), "1023 B"},
		{KiB, "1.00 KB"},
		{MiB - 1, "1024.00 KB"},
		{MiB, "1.00 MB"},
		{GiB, "1.00 GB"},
		{TiB - 1, "1024.00 GB"},
		{TiB, "1.00 TB"},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("case_%d_%d", i, uint64(tc.in)), func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.Humanized())
			require.Equal(t, tc.want, tc.in.String())
		})
	}
}

func TestBytes_Conversions(t *testing.T) {
	t.Run("from_pages", func(t *testing.T) {
		assert.Equal(t, Bytes(3*4096), FromPages(3, 4096))
		assert.Equal(t, Bytes(0), FromPages(3, 0))
	})
	t.Run("from_mib", func(t *testing.T) {
		assert.Equal(t, 512*MiB, FromMiB(512))
		assert.Equal(t, MiB/2, FromMiB(0.5))
		assert.Equal(t, Bytes(0), FromMiB(-1))
	})
	t.Run("to_bytes", func(t *testing.T) {
		assert.Equal(t, 42*KiB, ToBytes(42*1024))
	})
}

func TestDelta(t *testing.T) {
	t.Run("growth", func(t *testing.T) {
		d := Delta(3*MiB, 2*MiB)
		assert.Equal(t, BytesDelta(MiB), d)
		assert.Equal(t, "+1.00 MB", d.Humanized())
	})
	t.Run("shrink", func(t *testing.T) {
		d := Delta(100, 1124)
		assert.Equal(t, BytesDelta(-1024), d)
		assert.Equal(t, KiB, d.Abs())
		assert.Equal(t, "-1.00 KB", d.String())
	})
	t.Run("unchanged", func(t *testing.T) {
		assert.Equal(t, "0 B", Delta(7, 7).Humanized())
	})
}
