// Package buildinfo carries version data set with -ldflags -X.
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the build fields. An empty Commit falls back to the VCS
// revision stamped by the Go toolchain.
func Info() map[string]string {
	commit := Commit
	goVersion := ""
	if bi, ok := debug.ReadBuildInfo(); ok {
		goVersion = bi.GoVersion
		if commit == "" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
				}
			}
		}
	}
	return map[string]string{
		"version": Version,
		"commit":  commit,
		"builtAt": BuiltAt,
		"go":      goVersion,
	}
}
