// Package logger is a standardized event logging framework for the shell.
//
// Events are protobuf Structs so they can be written and read back with
// protojson without a schema of their own. Every event carries an "event"
// kind, a "timestamp_micros" and a "session_id".
package logger
