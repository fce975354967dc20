package protocol

import "fmt"

// Response status codes. Only StatusOK has a confirmed meaning; the device
// reports other values without documenting them.
const (
	StatusOK byte = 0

	// StatusExists is what the firmware has been observed to return for
	// CreateFolder on an existing directory. Callers treat it as tolerable
	// only through configuration.
	StatusExists byte = 1

	// StatusFailed is a generic failure code. The emulator uses it for
	// anything that is not a missing path or an existing folder.
	StatusFailed byte = 2

	// StatusNotFound is returned by the emulator for unknown paths and
	// handles.
	StatusNotFound byte = 3

	// StatusUnsupported is returned by the emulator for commands it does not
	// implement.
	StatusUnsupported byte = 0xFF
)

// DeviceError reports a response carrying a non-zero status.
type DeviceError struct {
	Command Command
	Status  byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device rejected %s: status %d", e.Command, e.Status)
}

// CheckStatus returns a *DeviceError when status is not StatusOK.
func CheckStatus(cmd Command, status byte) error {
	if status == StatusOK {
		return nil
	}
	return &DeviceError{Command: cmd, Status: status}
}
