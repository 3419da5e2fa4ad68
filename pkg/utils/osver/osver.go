// Package osver reads and compares the Windows version.
package osver

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

var (
	cachedVersion Version
	cachedOK      bool
	initOnce      sync.Once
)

// Version is a Windows version. Windows 11 reports 10.0 with a build
// number of 22000 or later.
type Version struct {
	Major int
	Minor int
	Build int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// Get returns the running Windows version, read once and cached. ok is false
// on other operating systems.
func Get() (Version, bool) {
	initOnce.Do(func() {
		cachedVersion, cachedOK = get()
	})
	return cachedVersion, cachedOK
}

// Parse converts "major.minor.build" or "major.minor" into a Version.
func Parse(version string) (Version, error) {
	parts := strings.Split(version, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version format: %s", version)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version component %q in %s", p, version)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Build: nums[2]}, nil
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer than
// other.
func (v Version) Compare(other Version) int {
	for _, d := range [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Build, other.Build}} {
		switch {
		case d[0] < d[1]:
			return -1
		case d[0] > d[1]:
			return 1
		}
	}
	return 0
}

func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

// IsAtLeast checks the running Windows version. It is always true on other
// operating systems, where LAD only runs for development.
func IsAtLeast(major, minor, build int) bool {
	current, ok := Get()
	if !ok {
		return true
	}
	return current.AtLeast(Version{Major: major, Minor: minor, Build: build})
}
