// Package version 记录构建版本。发布构建通过 -ldflags "-X" 覆盖 Version。
package version

import (
	"github.com/blang/semver/v4"
)

// Version 是当前构建的语义化版本号。
var Version = "0.1.0-dev"

// fallback 在 Version 无法解析时使用。
var fallback = semver.Version{Major: 0, Minor: 0, Patch: 0, Pre: []semver.PRVersion{{VersionStr: "unknown"}}}

// Semver 返回解析后的版本，无法解析时返回 0.0.0-unknown。
func Semver() semver.Version {
	return parse(Version)
}

func parse(value string) semver.Version {
	v, err := semver.ParseTolerant(value)
	if err != nil {
		return fallback
	}
	return v
}

// String 返回规范化的版本字符串。
func String() string {
	return Semver().String()
}

// Satisfies 判断当前版本是否落在 rangeExpr 描述的范围内，例如 ">=0.1.0 <1.0.0"。
func Satisfies(rangeExpr string) (bool, error) {
	r, err := semver.ParseRange(rangeExpr)
	if err != nil {
		return false, err
	}
	return r(Semver()), nil
}
