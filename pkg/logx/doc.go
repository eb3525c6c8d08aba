// Package logx is the structured logging layer of schedulebot.
//
// Logger is a small value type on top of zerolog. A Service owns the sinks:
//   - console output for humans
//   - a rotating JSON file
//   - an optional Telegram chat that receives warnings and errors
//
// Sinks can be swapped at runtime with Service.Apply; loggers handed out by the
// Service follow the change without being rebuilt.
package logx
