package build

// Overridden at build time with -ldflags "-X ..."
var LongVersion = "dev"
