// Package logging provides file-based logging with rotation.
// Logs are written to ~/.codexcore/logs/ and mirrored to stderr.
//
// The default level is info; the --debug flag raises it to debug for
// troubleshooting.
package logging
