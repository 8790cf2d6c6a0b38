/*
Package dsl provides a fluent Go builder for the conversation graphs run by the engine.

A graph is a set of named nodes joined by edges. Each node is a Go function that
reads the current ConversationState (and, for waiting nodes, the actor's input)
and returns a domain.Update. Edges are either static (Next) or conditional
(Branch), and a conditional edge declares every target its router may return so
the whole graph can be validated before it ever runs.

Example usage:

	b := dsl.New("ask_name")

	b.Add("ask_name").
		Wait(askName).
		Branch(func(s domain.ConversationState) string {
			if s.Profile == nil {
				return "ask_name"
			}
			return "done"
		}, "ask_name", "done")

	b.Terminal("done")

	graph, err := b.Compile()
	if err != nil {
		// errors.Is(err, domain.ErrInvalidGraph)
	}
*/
package dsl
