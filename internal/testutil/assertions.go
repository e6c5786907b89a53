package testutil

import (
	"bufio"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ControlStages maps every job script sequenced by a control script to the
// stage it runs in, counting from zero.
func ControlStages(t *testing.T, controlScript string) map[string]int {
	t.Helper()
	file, err := os.Open(controlScript)
	require.NoError(t, err)
	defer file.Close()

	stages := make(map[string]int)
	stage := 0
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "wait_stage":
			stage++
		case strings.HasPrefix(line, `run_job "`):
			name := strings.TrimPrefix(line, `run_job "`)
			name = name[:strings.Index(name, `"`)]
			stages[name] = stage
		}
	}
	require.NoError(t, sc.Err())
	return stages
}

// AssertRunsBefore checks that the job script first is sequenced in an
// earlier stage than second.
func AssertRunsBefore(t *testing.T, stages map[string]int, first, second string) {
	t.Helper()
	a, ok := stages[first]
	require.True(t, ok, "%s is not in the control script", first)
	b, ok := stages[second]
	require.True(t, ok, "%s is not in the control script", second)
	assert.Less(t, a, b, "%s must run before %s", first, second)
}

// RunControlScript executes a generated control script with bash and
// returns its combined output. The test is skipped when bash is missing.
func RunControlScript(t *testing.T, controlScript string) (string, error) {
	t.Helper()
	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash is not available")
	}
	out, err := exec.Command(bash, controlScript).CombinedOutput()
	return string(out), err
}
