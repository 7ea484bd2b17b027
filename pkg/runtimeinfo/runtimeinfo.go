// Package runtimeinfo exposes the binary's build provenance for the
// admin server's /version endpoint.
package runtimeinfo

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// Info describes the running binary.
type Info struct {
	AppName     string `json:"app.name"`
	GoVersion   string `json:"go.version"`
	GoArch      string `json:"go.arch"`
	Vcs         string `json:"vcs"`
	VcsRevision string `json:"vcs.revision"`
	VcsTime     string `json:"vcs.time"`
	Dirty       bool   `json:"dirty"`
}

// BuildInfo is populated once at process start from debug.ReadBuildInfo.
var BuildInfo Info

func init() {
	BuildInfo.GoVersion = runtime.Version()
	BuildInfo.GoArch = runtime.GOARCH

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	paths := strings.Split(info.Path, "/")
	BuildInfo.AppName = paths[len(paths)-1]

	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs":
			BuildInfo.Vcs = kv.Value
		case "vcs.revision":
			if len(kv.Value) >= 8 {
				BuildInfo.VcsRevision = kv.Value[:8]
			} else {
				BuildInfo.VcsRevision = kv.Value
			}
		case "vcs.time":
			BuildInfo.VcsTime = kv.Value
		case "vcs.modified":
			BuildInfo.Dirty = kv.Value == "true"
		}
	}
}
