package primitives

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites data with zeros using a constant-time XOR the compiler
// cannot optimize away (x XOR x = 0), then keeps data alive past the wipe
// so the dead-store elimination pass can't drop the XOR entirely. Call this
// on any secret buffer (shared secrets, DEKs, unwrapped keys) once consumed.
func Zero(data []byte) {
	if data == nil {
		return
	}
	subtle.XORBytes(data, data, data)
	runtime.KeepAlive(data)
}

// Zero32 is Zero for a fixed-size 32-byte secret, the common case for DEKs,
// GSKs, and shared secrets.
func Zero32(data *[32]byte) {
	if data == nil {
		return
	}
	Zero(data[:])
}
