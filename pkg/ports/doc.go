/*
Package ports defines the driven ports (interfaces) of the configurator.

These interfaces decouple sessions from external implementations, allowing exported
snapshots to be kept in memory, on disk or in Redis.

# Key Interfaces

  - SnapshotStore: persists exported assignment snapshots.
  - DistributedLocker: serializes snapshot export across replicas.
*/
package ports
