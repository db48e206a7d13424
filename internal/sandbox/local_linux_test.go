//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alive reports whether pid is a process that has not exited yet. Zombies
// waiting for their new parent to reap them count as gone.
func alive(pid int) bool {
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && fields[0] != "Z" && fields[0] != "X"
}

func TestLocalKillsBackgroundChildrenAfterExit(t *testing.T) {
	r := NewLocal("", 0, nil)

	res := runLocal(t, r, "sleep 30 >/dev/null 2>&1 & echo $!", "", 2*time.Second)
	require.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)

	pid, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !alive(pid) }, 2*time.Second, 20*time.Millisecond)
}
