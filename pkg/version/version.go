package version

// Version is the release version reported by the CLI and the HTTP API.
const Version = "v0.3.0"
