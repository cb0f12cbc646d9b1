package service

import (
	"fractionalhub.app/concierge/core/config"
	"fractionalhub.app/concierge/internal/store"
)

// Services wires the gateway's service layer from its stores and config.
type Services struct {
	jobs     store.JobStore
	profiles store.ProfileStore
	memories store.MemoryStore
	voiceCfg config.VoiceConfig
}

func NewServices(jobs store.JobStore, profiles store.ProfileStore, memories store.MemoryStore, voiceCfg config.VoiceConfig) *Services {
	return &Services{
		jobs:     jobs,
		profiles: profiles,
		memories: memories,
		voiceCfg: voiceCfg,
	}
}

func (s *Services) ToolCalls() ToolCallService {
	return NewToolCallService(s.jobs, s.profiles)
}

func (s *Services) Memory() MemoryService {
	return NewMemoryService(s.memories)
}

func (s *Services) Tokens() TokenService {
	return NewTokenService(s.voiceCfg)
}
