// Package audio provides the playback devices used by the engine: Player,
// which plays 16-bit PCM through oto/v3, and MockDevice for tests. Both
// satisfy playback.Device.
package audio
