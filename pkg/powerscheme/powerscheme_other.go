//go:build !windows

package powerscheme

import (
	"github.com/google/uuid"

	"github.com/ladapp/lad/pkg/syserr"
)

type nativeAPI struct{}

// NativeAPI returns an API whose calls all fail with syserr.ErrUnsupported.
func NativeAPI() API { return nativeAPI{} }

func (nativeAPI) ActiveScheme() (uuid.UUID, error) {
	return uuid.Nil, syserr.Newf(syserr.ErrUnsupported, "PowerGetActiveScheme", "power schemes require Windows")
}

func (nativeAPI) ReadACValue(_, _, _ uuid.UUID) (uint32, error) {
	return 0, syserr.Newf(syserr.ErrUnsupported, "PowerReadACValueIndex", "power schemes require Windows")
}

func (nativeAPI) WriteACValue(_, _, _ uuid.UUID, _ uint32) error {
	return syserr.Newf(syserr.ErrUnsupported, "PowerWriteACValueIndex", "power schemes require Windows")
}

func (nativeAPI) SetActiveScheme(uuid.UUID) error {
	return syserr.Newf(syserr.ErrUnsupported, "PowerSetActiveScheme", "power schemes require Windows")
}
