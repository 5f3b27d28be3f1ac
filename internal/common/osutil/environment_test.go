package osutil

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearCI(t *testing.T) {
	t.Helper()
	for name := range ciMarkers {
		t.Setenv(name, "")
	}
}

func TestIsCI(t *testing.T) {
	clearCI(t)
	assert.False(t, IsCI())

	t.Setenv("CI", "false")
	assert.False(t, IsCI())

	t.Setenv("JENKINS_URL", "https://jenkins.example.com")
	assert.True(t, IsCI())
}

func TestPlatform(t *testing.T) {
	clearCI(t)
	assert.True(t, strings.HasPrefix(Platform(), runtime.GOOS+"/"+runtime.GOARCH))
	assert.NotContains(t, Platform(), "ci")

	t.Setenv("GITHUB_ACTIONS", "true")
	assert.Contains(t, Platform(), "; ci")
}
