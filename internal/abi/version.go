package abi

// Version constants for the ABI layout and the toolchain.
const (
	// LayoutVersion identifies the memory and tape layout described in layout.go.
	// Bump it whenever a header width or field order changes.
	LayoutVersion = "1"

	// ToolVersion is the zkabi toolchain version.
	ToolVersion = "0.1.0"
)
