// Package version reports the build of the formdata binary, from values
// set with -ldflags and the build info embedded by the Go toolchain.
package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Info describes a build
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Compiler  string `json:"compiler"`
	Source    string `json:"source,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Hash      string `json:"hash,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Set with -ldflags -X
var (
	GitSource   string
	GitTag      string
	GitBranch   string
	GitHash     string
	GoBuildTime string
)

const shortHash = 12

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Version returns the git tag or branch, the short revision or "dev"
func Version() string {
	return Get("").Version
}

// Get returns the build information for the executable name
func Get(name string) Info {
	info := Info{
		Name:      name,
		Compiler:  runtime.Version(),
		Source:    GitSource,
		Tag:       GitTag,
		Branch:    GitBranch,
		Hash:      GitHash,
		BuildTime: GoBuildTime,
	}
	if build, ok := debug.ReadBuildInfo(); ok {
		info.merge(build)
	}

	switch {
	case info.Tag != "":
		info.Version = info.Tag
	case info.Branch != "":
		info.Version = info.Branch
	case info.Hash != "":
		info.Version = info.Hash[:min(len(info.Hash), shortHash)]
	default:
		info.Version = "dev"
	}
	return info
}

// JSON returns the indented build information for the executable name
func JSON(name string) []byte {
	data, err := json.MarshalIndent(Get(name), "", "  ")
	if err != nil {
		panic(err)
	}
	return data
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// merge fills fields not set with -ldflags from the embedded build info
func (info *Info) merge(build *debug.BuildInfo) {
	if info.Source == "" {
		info.Source = build.Main.Path
	}
	settings := make(map[string]string, len(build.Settings))
	for _, s := range build.Settings {
		settings[s.Key] = s.Value
	}
	if info.Hash == "" {
		info.Hash = settings["vcs.revision"]
	}
	if info.BuildTime == "" {
		info.BuildTime = settings["vcs.time"]
	}
	info.Modified = settings["vcs.modified"] == "true"
	if settings["GOOS"] != "" && settings["GOARCH"] != "" {
		info.Platform = settings["GOOS"] + "/" + settings["GOARCH"]
	}
}
