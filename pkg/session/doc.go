/*
Package session runs configurator sessions.

A Session owns one registry, propagation engine and stage gate over a compiled
blueprint. A Manager keeps many sessions keyed by ID, serializing access to each with a
reader/writer lock, and persists exported snapshots through a ports.SnapshotStore.
*/
package session
