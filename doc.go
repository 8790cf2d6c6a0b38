/*
Package chatdemo is a resumable incident-intake bot for WhatsApp.

A conversation is a compiled graph of nodes (greeting, registration,
description, classification, confirmation, save). The engine runs nodes until
one needs user input, persists a versioned checkpoint and returns the reply.
The next message resumes the same thread from that checkpoint.

# Usage

	bot, err := chatdemo.New(ctx,
		chatdemo.WithConfig(cfg),
		chatdemo.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer bot.Close()

	reply, err := bot.Handle(ctx, "5215550001", domain.TextInput("hola"))

Every collaborator (repository, checkpoint store, text service, catalog) can
be injected with an Option; the rest is built from config.Config.

# Storage

Checkpoints live in memory, JSON files, Redis or the SQL database, selected
by checkpoint_backend. Saves are compare-and-swap on the checkpoint version,
so two writers racing on the same thread never both win. An encryption key
enables AES-GCM sealing of the persisted state.
*/
package chatdemo
