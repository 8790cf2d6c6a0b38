// Package intake defines the incident-intake conversation: the catalog of
// incident templates, the nodes that talk to the actor and the routing tables
// that join them into a dsl.Graph.
//
// Two variants share the same nodes. Direct saves as soon as the classifier is
// confident enough. Guided lets the actor pick a candidate, fill the missing
// fields and confirm a summary before saving.
package intake
