// Package stream serves diarization sessions over WebSocket.
//
// A client connects to /ws, optionally naming a session with
// ?session=<name>; without one a random UUID is assigned. Each connection
// owns one diarize.Engine. Saved profiles for the session are restored on
// connect and saved in the background while audio flows and once more on
// disconnect.
//
// Binary messages carry 16-bit little-endian mono PCM at the engine's
// sample rate and are answered with a "result" event. Text messages carry
// JSON commands:
//
//	{"type":"stats"}
//	{"type":"reset"}
//	{"type":"save"}
//	{"type":"sensitivity","value":0.5}
//
// All server messages are JSON Events.
package stream
