// Package seal implements the Seal envelope codec: the bit-exact
// multi-recipient encrypted envelope format used for both direct
// point-to-point messages and (in its single-recipient Nexus variant)
// group messages wrapped under a shared group key. See the wire format
// documented in wire.go.
package seal
