package speech

import "strings"

// DefaultVoice is used when neither the persona nor the config names one.
const DefaultVoice = "alloy"

var supportedVoices = map[string]struct{}{
	"alloy":   {},
	"ash":     {},
	"ballad":  {},
	"coral":   {},
	"echo":    {},
	"fable":   {},
	"nova":    {},
	"onyx":    {},
	"sage":    {},
	"shimmer": {},
	"verse":   {},
}

// 人设侧常用的描述性别名。
var voiceAliases = map[string]string{
	"warm-female":   "nova",
	"gentle-female": "shimmer",
	"storyteller":   "fable",
	"deep-male":     "onyx",
	"calm-male":     "echo",
}

// NormalizeVoice maps a persona voice selector to a supported voice,
// falling back when it is empty or unknown.
func NormalizeVoice(voice, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(voice))
	if mapped, ok := voiceAliases[normalized]; ok {
		return mapped
	}
	if _, ok := supportedVoices[normalized]; ok {
		return normalized
	}
	if fallback == "" {
		return DefaultVoice
	}
	return fallback
}
