package cmd

// Version is the application version.
// Set it at build time: go build -ldflags "-X github.com/xkilldash9x/shopflow/cmd.Version=1.0.0"
var Version = "0.1.0"
