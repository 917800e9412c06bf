package signalbus

// Version is the library version, overridable at build time via
// -ldflags "-X github.com/growthkit/signalbus.Version=...".
var Version = "0.1.0"
