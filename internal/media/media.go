// Package media states the thin OS-level collaborators spec.md §1 names as
// out of scope: ringtone/ringback playback and speaker/earpiece/bluetooth
// routing. This package only defines the contracts a Call depends on, plus
// no-op implementations for hosts (and tests) that don't need real audio.
package media

// Player plays and stops ringtone/ringback audio for a Call. A real
// implementation wraps an OS media player; this package never implements
// one.
type Player interface {
	PlayRingtone()
	PlayRingback()
	Stop()
}

// AudioManager switches microphone mute and speaker routing at the OS
// level. A real implementation wraps a platform audio API.
type AudioManager interface {
	SetMuted(muted bool)
	SetLoudspeaker(on bool)
}

// NoopPlayer discards every call. Useful as a Call's default Player so
// hosts that don't care about audio feedback never need a nil check.
type NoopPlayer struct{}

func (NoopPlayer) PlayRingtone() {}
func (NoopPlayer) PlayRingback() {}
func (NoopPlayer) Stop()         {}

// NoopAudioManager discards every call.
type NoopAudioManager struct{}

func (NoopAudioManager) SetMuted(bool)      {}
func (NoopAudioManager) SetLoudspeaker(bool) {}
