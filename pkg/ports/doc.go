/*
Package ports defines the driven ports (interfaces) of the intake engine.

These interfaces decouple the core from concrete infrastructure, so the engine
and the thread adapter work the same against memory, file, Redis or SQL
storage, and against real or scripted text understanding.

# Key Interfaces

  - CheckpointStore: persists one versioned Checkpoint per thread (CAS on Version).
  - DistributedLocker: serializes a thread across replicas.
  - TextService / MediaService: the natural-language collaborators used by nodes.
  - Repository: users, incidents, attachments, conversations and the message log.
  - Sender: pushes outbound text to a messaging provider.
*/
package ports
