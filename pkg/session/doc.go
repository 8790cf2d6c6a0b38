/*
Package session serializes work on conversation threads.

It gives every thread a reference-counted local mutex, optionally backed by a
distributed lock for multi-replica deployments, keeps a cache of threads known
to be waiting for input, and retries units of work that lose a checkpoint
compare-and-swap race.
*/
package session
