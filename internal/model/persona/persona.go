package persona

// Persona is a companion profile a session can bind to.
type Persona struct {
	ID           string `json:"id" mapstructure:"id"`
	Name         string `json:"name" mapstructure:"name"`
	Description  string `json:"description" mapstructure:"description"`
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"`
	VoiceID      string `json:"voice_id,omitempty" mapstructure:"voice_id"`
	AvatarURL    string `json:"avatar_url,omitempty" mapstructure:"avatar_url"`
}

// CreateRequest carries the fields accepted when creating a persona.
type CreateRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
	VoiceID      string `json:"voice_id,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
}

// UpdateRequest is a partial update; nil fields are left untouched.
type UpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	SystemPrompt *string `json:"system_prompt,omitempty"`
	VoiceID      *string `json:"voice_id,omitempty"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
}

func (u UpdateRequest) apply(p *Persona) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.SystemPrompt != nil {
		p.SystemPrompt = *u.SystemPrompt
	}
	if u.VoiceID != nil {
		p.VoiceID = *u.VoiceID
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
}

// Seed provides the built-in companions used when no persona file is configured.
func Seed() []Persona {
	return []Persona{
		{
			ID:           "aura",
			Name:         "Aura",
			Description:  "A warm, patient companion who checks in on daily routines and wellbeing",
			SystemPrompt: "Speak slowly and kindly. Ask about meals, sleep and medication gently, never in a scolding tone.",
			VoiceID:      "nova",
		},
		{
			ID:           "storyteller",
			Name:         "Minh",
			Description:  "A cheerful storyteller who loves old songs, family memories and local history",
			SystemPrompt: "Invite the user to share memories. Relate their stories back to them with curiosity and delight.",
			VoiceID:      "fable",
		},
		{
			ID:           "coach",
			Name:         "Linh",
			Description:  "An encouraging movement coach for light daily exercise",
			SystemPrompt: "Suggest only gentle, seated or standing exercises. Always remind the user to stop if anything hurts.",
			VoiceID:      "shimmer",
		},
	}
}
