/*
Package domain contains the core domain models of the incident intake engine.

It defines the conversation state and its merge rules, the durable checkpoint,
the step result returned by the engine, and the persisted domain records. This
package is kept pure and free of I/O.

# Key Entities

  - ConversationState: the typed snapshot owned by one thread.
  - Update: what a node returns; merged with declared per-field rules.
  - Checkpoint: state plus the pending suspension pointer and a version.
  - StepResult: either Suspended(prompt) or Finished(terminal).
  - IncidentRecord, UserProfile, Conversation: persisted domain records.
*/
package domain
