//go:build linux

package cgroup

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Detect(t *testing.T) {
	ver, str, err := Detect()
	require.NoError(t, err)
	assert.NotEmpty(t, str)
	t.Logf("detected %s: %s", ver, str)
}

func TestParseMountinfo(t *testing.T) {
	const v2 = "30 23 0:26 / /sys/fs/cgroup rw,nosuid shared:4 - cgroup2 cgroup2 rw,nsdelegate\n"
	const v1 = "31 23 0:27 / /sys/fs/cgroup/cpu rw shared:5 - cgroup cgroup rw,cpu,cpuacct\n"
	const other = "22 1 8:1 / / rw,relatime shared:1 - ext4 /dev/sda1 rw\n"

	cases := []struct {
		name string
		in   string
		want Version
	}{
		{"unified", other + v2, V2},
		{"legacy", other + v1, V1},
		{"hybrid", v1 + v2, Hybrid},
		{"none", other, Unsupported},
		{"garbage", "no separator here\n", Unsupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, detail, err := ParseMountinfo(strings.NewReader(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.NotEmpty(t, detail)
		})
	}
}

func TestParseProcCgroup(t *testing.T) {
	t.Run("unified_wins", func(t *testing.T) {
		p, err := ParseProcCgroup(strings.NewReader("4:cpu,cpuacct:/legacy\n0::/user.slice/session-1.scope\n"))
		require.NoError(t, err)
		assert.Equal(t, "/user.slice/session-1.scope", p)
	})
	t.Run("v1_cpu_controller", func(t *testing.T) {
		p, err := ParseProcCgroup(strings.NewReader("1:name=systemd:/init.scope\n4:cpu,cpuacct:/docker/abc\n"))
		require.NoError(t, err)
		assert.Equal(t, "/docker/abc", p)
	})
	t.Run("v1_systemd_fallback", func(t *testing.T) {
		p, err := ParseProcCgroup(strings.NewReader("2:memory:/m\n1:name=systemd:/init.scope\n"))
		require.NoError(t, err)
		assert.Equal(t, "/init.scope", p)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := ParseProcCgroup(strings.NewReader(""))
		assert.True(t, errors.Is(err, ErrNoCgroup))
	})
}

func TestReadProcCgroup(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proc/42/cgroup", []byte("0::/system.slice/sshd.service\n"), 0o444))

	p, err := ReadProcCgroup(fs, "/proc", 42)
	require.NoError(t, err)
	assert.Equal(t, "/system.slice/sshd.service", p)

	_, err = ReadProcCgroup(fs, "/proc", 43)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
