// Package messenger wires Atlas, the DHT adapter, the keyserver,
// contact-request, Seal, Nexus, Spillway, and the pipeline orchestrator
// together into one identity-scoped Engine.
//
// Engine is a thin builder over the lower packages: it derives an
// identity from a mnemonic, publishes it to the keyserver, and
// constructs the collaborators a pipeline.Engine needs. Callers that
// want direct control over any one layer can use the underlying
// packages directly instead of going through Engine.
package messenger
