package chatdemo

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/JonathanLopez0327/chat-demo.Version=v1.2.3".
var Version = "dev"
