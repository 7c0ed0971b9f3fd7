package buildinfo

import "testing"

func TestInfo(t *testing.T) {
	old := Commit
	Commit = "abc123"
	defer func() { Commit = old }()
	info := Info()
	if info["version"] != Version || info["commit"] != "abc123" {
		t.Fatalf("unexpected info: %v", info)
	}
}
