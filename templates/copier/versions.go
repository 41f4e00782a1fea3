/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package copier

import (
	"strconv"
	"strings"
)

// ResolveVersionRange merges a template's dependency range with the
// target's. The policy of record is "prefer the template's range": no
// semver intersection is attempted. Upgrade/downgrade direction is still
// detected separately so the classifier can tier the change.
func ResolveVersionRange(templateRange, _ string) string {
	return templateRange
}

type direction int

const (
	directionUnknown direction = iota
	directionEqual
	directionUpgrade
	directionDowngrade
)

// rangeDirection compares the numeric cores of two version ranges,
// ignoring range operators (^, ~, >=, etc.). Ranges without a comparable
// numeric core report directionUnknown.
func rangeDirection(from, to string) direction {
	a, okA := versionCore(from)
	b, okB := versionCore(to)
	if !okA || !okB {
		return directionUnknown
	}

	for i := 0; i < len(a) || i < len(b); i++ {
		va, vb := 0, 0
		if i < len(a) {
			va = a[i]
		}
		if i < len(b) {
			vb = b[i]
		}
		switch {
		case vb > va:
			return directionUpgrade
		case vb < va:
			return directionDowngrade
		}
	}
	return directionEqual
}

func versionCore(s string) ([]int, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "^~=<>v ")
	if s == "" {
		return nil, false
	}

	parts := strings.Split(s, ".")
	core := make([]int, 0, len(parts))
	for _, p := range parts {
		// Tolerate pre-release suffixes on the last component.
		if i := strings.IndexAny(p, "-+"); i >= 0 {
			p = p[:i]
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		core = append(core, n)
	}
	if len(core) == 0 {
		return nil, false
	}
	return core, true
}
