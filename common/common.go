// Package common holds constants shared across FoldNet packages.
package common

// PackageName is the canonical module path, used to namespace metrics.
const PackageName = "github.com/foldnet/foldnet"

// Version is the FoldNet release version, overridable at build time via
// -ldflags "-X github.com/foldnet/foldnet/common.Version=...".
var Version = "dev"
