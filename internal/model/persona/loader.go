package persona

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/aura-companion/gateway/internal/model/chat"
)

// LoadFile reads personas from a yaml/json/toml file with a top-level
// "personas" list.
func LoadFile(path string) ([]Persona, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) ([]Persona, error) {
	var items []Persona
	if err := v.UnmarshalKey("personas", &items); err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}

	seen := make(map[string]struct{}, len(items))
	for i := range items {
		items[i].ID = strings.TrimSpace(items[i].ID)
		if items[i].ID == "" {
			return nil, fmt.Errorf("persona #%d: id is required", i+1)
		}
		// the default conversation and memory share this key
		if items[i].ID == chat.DefaultConversation {
			return nil, fmt.Errorf("persona %s: %w", items[i].ID, ErrReservedID)
		}
		if strings.TrimSpace(items[i].Name) == "" {
			return nil, fmt.Errorf("persona %s: %w", items[i].ID, ErrNameRequired)
		}
		if _, dup := seen[items[i].ID]; dup {
			return nil, fmt.Errorf("persona %s: duplicate id", items[i].ID)
		}
		seen[items[i].ID] = struct{}{}
	}
	return items, nil
}

// Watch reloads the file into store whenever it changes on disk. Sessions
// that already bound a persona keep their snapshot.
func Watch(path string, store Store) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read persona file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		items, err := decode(v)
		if err != nil {
			log.Warn().Err(err).Str("component", "persona").Str("file", e.Name).Msg("persona reload rejected")
			return
		}
		store.Replace(items)
		log.Info().Str("component", "persona").Str("file", e.Name).Int("count", len(items)).Msg("personas reloaded")
	})
	v.WatchConfig()
	return nil
}
