package version

import "testing"

func withBuild(t *testing.T, v, c, b string) {
	t.Helper()
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	})
	Version, Commit, BuildTime = v, c, b
}

func TestString(t *testing.T) {
	withBuild(t, "1.2.3", "abc1234", "2026-01-15T10:00:00Z")

	want := "1.2.3 (abc1234) built 2026-01-15T10:00:00Z"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGet(t *testing.T) {
	withBuild(t, "0.4.0", "deadbee", "now")

	info := Get()
	if info.Version != "0.4.0" || info.Commit != "deadbee" || info.BuildTime != "now" {
		t.Errorf("Get() = %+v", info)
	}
}

func TestUserAgent(t *testing.T) {
	withBuild(t, "dev", "unknown", "unknown")

	if got := UserAgent(); got != "crypto-tracker/dev" {
		t.Errorf("UserAgent() = %q, want %q", got, "crypto-tracker/dev")
	}
}
