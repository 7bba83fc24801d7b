package types

// Version is the canonical project version.
// The CLI, run report schema, and journal record schema share this version.
const Version = "0.4.2"
