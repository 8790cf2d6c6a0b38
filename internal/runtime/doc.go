// Package runtime executes compiled conversation graphs against a checkpoint store.
//
// A call to Start or Resume advances node by node without yielding to the caller
// until a node suspends or a terminal is reached, then persists exactly one
// checkpoint. Input is bound to the suspended node only.
package runtime
