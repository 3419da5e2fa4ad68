package powerscheme

import "github.com/google/uuid"

// Power setting subgroups and settings written by the controller.
var (
	SubgroupButtons  = uuid.MustParse("4f971e89-eebd-4455-a8de-9e59040e7347")
	LidCloseAction   = uuid.MustParse("5ca83367-6e45-459f-a27b-476b1d01c936")
	SubgroupSleep    = uuid.MustParse("238c9fa8-0aad-41ed-83f4-97be242c8f20")
	HibernateTimeout = uuid.MustParse("9d7815a6-7ee4-497e-8888-515a05f02364")

	SubgroupUSB         = uuid.MustParse("2a737441-1930-4402-8d77-b2eebf27e6b4")
	USBSelectiveSuspend = uuid.MustParse("48e6b7a6-50f5-4782-a5d4-53bb8f07e226")
)

// Built-in power schemes.
var (
	SchemeHighPerformance = uuid.MustParse("8c5e7fda-e8bf-4a96-9a85-a6e23a8c635c")
	SchemeBalanced        = uuid.MustParse("381b4222-f694-41f0-9685-ff5bb260df2e")
	SchemePowerSaver      = uuid.MustParse("a1841308-3541-4fab-bc81-f71556f20b4a")
)

// SchemeName returns a readable name for the built-in schemes and the GUID
// text for anything else.
func SchemeName(id uuid.UUID) string {
	switch id {
	case SchemeHighPerformance:
		return "High performance"
	case SchemeBalanced:
		return "Balanced"
	case SchemePowerSaver:
		return "Power saver"
	default:
		return id.String()
	}
}
