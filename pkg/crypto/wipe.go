package crypto

import "runtime"

// Wipe overwrites sensitive data with zeros. runtime.KeepAlive prevents the
// compiler from eliding the store when the slice is about to go out of scope.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
