package osutil

import (
	"fmt"
	"os"
	"runtime"
)

// CI environment variables checked by IsCI, each with the value that marks
// a pipeline run. An empty value means any non-empty setting counts.
var ciMarkers = map[string]string{
	"CI":             "true",
	"PIPELINE":       "true",
	"GITHUB_ACTIONS": "true",
	"GITLAB_CI":      "true",
	"JENKINS_URL":    "",
	"BUILDKITE":      "true",
}

// IsCI returns true if running in a CI/CD pipeline environment
func IsCI() bool {
	for name, want := range ciMarkers {
		got := os.Getenv(name)
		if got == "" {
			continue
		}
		if want == "" || got == want {
			return true
		}
	}
	return false
}

// IsContainerized attempts to detect if running in a container environment
func IsContainerized() bool {
	// Check for Docker
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	// Check for Kubernetes
	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return true
	}

	return false
}

// Platform describes the host for User-Agent strings, e.g. "linux/amd64; ci".
func Platform() string {
	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	if IsCI() {
		platform += "; ci"
	}
	if IsContainerized() {
		platform += "; container"
	}
	return platform
}
