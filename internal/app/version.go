package app

// Version and Build are set at build time via -ldflags.
var (
	Version = "dev"
	Build   = ""
)
