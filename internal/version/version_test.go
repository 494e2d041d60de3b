package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, c, b := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = v, c, b })

	Version, GitCommit, BuildTime = "v1.2.0", "unknown", "unknown"
	assert.Equal(t, "sitegen v1.2.0", String())

	GitCommit, BuildTime = "abc1234", "2026-01-02"
	assert.Equal(t, "sitegen v1.2.0 (commit abc1234, built 2026-01-02)", String())
}
