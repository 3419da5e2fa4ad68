//go:build !windows

package osver

func get() (Version, bool) {
	return Version{}, false
}
