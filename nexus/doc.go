// Package nexus implements the group-key engine: generating and locally
// sealing Group Session Keys (GSKs), and building/verifying/extracting the
// Initial Key Packet (IKP) that distributes a GSK to group members over
// the DHT. Rotation on membership change is the security-critical path —
// see rotate.go.
package nexus
