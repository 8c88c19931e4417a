// Command scribe is the transcription scheduler CLI: it runs the daemon and
// drives it over the HTTP API.
package main
