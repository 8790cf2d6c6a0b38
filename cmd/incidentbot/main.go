// Command incidentbot runs the incident-intake bot: the WhatsApp webhook
// server, a terminal chat and admin tools over persisted threads.
package main

func main() {
	Execute()
}
