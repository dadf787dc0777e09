// Package logging provides opt-in file-based logging with rotation for semdex.
// When the --debug flag is set, comprehensive logs are written to ~/.semdex/logs/
// for debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr only.
// In MCP serve mode logs go exclusively to file so stdout stays reserved for
// the protocol stream.
package logging
