package helpers

import (
	"sync"

	"github.com/Seklfreak/mirrorbot/models"
	"github.com/pkg/errors"
)

// MappingSaver persists the complete mapping list.
type MappingSaver interface {
	SaveMappings(mappings []models.Mapping) error
}

// MappingStore owns the mirror mappings. Every change is written through the saver
// before it becomes visible.
type MappingStore struct {
	sync.RWMutex

	mappings []models.Mapping
	saver    MappingSaver
}

func NewMappingStore(saver MappingSaver, mappings []models.Mapping) *MappingStore {
	store := &MappingStore{
		saver:    saver,
		mappings: make([]models.Mapping, 0, len(mappings)),
	}
	for _, mapping := range mappings {
		if store.exists(mapping) {
			continue
		}
		store.mappings = append(store.mappings, mapping)
	}
	return store
}

func (s *MappingStore) exists(pair models.Mapping) bool {
	for _, mapping := range s.mappings {
		if mapping.SamePair(pair) {
			return true
		}
	}
	return false
}

func (s *MappingStore) Exists(sourceChannelID, destinationChannelID string) bool {
	s.RLock()
	defer s.RUnlock()

	return s.exists(models.Mapping{SourceChannelID: sourceChannelID, DestinationChannelID: destinationChannelID})
}

// Filter returns all mappings matching predicate, in insertion order.
func (s *MappingStore) Filter(predicate func(models.Mapping) bool) []models.Mapping {
	s.RLock()
	defer s.RUnlock()

	result := make([]models.Mapping, 0)
	for _, mapping := range s.mappings {
		if predicate(mapping) {
			result = append(result, mapping)
		}
	}
	return result
}

func (s *MappingStore) FindBySource(channelID string) []models.Mapping {
	return s.Filter(func(mapping models.Mapping) bool {
		return mapping.SourceChannelID == channelID
	})
}

func (s *MappingStore) FindByGuild(guildID string) []models.Mapping {
	return s.Filter(func(mapping models.Mapping) bool {
		return mapping.SourceGuildID == guildID
	})
}

// OwnsWebhook reports whether webhookID is the webhook of any mapping.
func (s *MappingStore) OwnsWebhook(webhookID string) bool {
	if webhookID == "" {
		return false
	}
	return len(s.Filter(func(mapping models.Mapping) bool {
		id, _, err := ParseWebhookURL(mapping.DestinationWebhookURL)
		return err == nil && id == webhookID
	})) > 0
}

func (s *MappingStore) All() []models.Mapping {
	return s.Filter(func(models.Mapping) bool { return true })
}

func (s *MappingStore) Len() int {
	s.RLock()
	defer s.RUnlock()

	return len(s.mappings)
}

// Add appends mapping and persists the store. Adding an existing source/destination
// pair fails with ErrorKindDuplicateMapping.
func (s *MappingStore) Add(mapping models.Mapping) error {
	s.Lock()
	defer s.Unlock()

	if s.exists(mapping) {
		return NewError(ErrorKindDuplicateMapping, "mapping from #"+mapping.SourceChannelID+
			" to #"+mapping.DestinationChannelID+" already exists")
	}

	updated := make([]models.Mapping, len(s.mappings), len(s.mappings)+1)
	copy(updated, s.mappings)
	updated = append(updated, mapping)

	if err := s.saver.SaveMappings(updated); err != nil {
		return errors.Wrap(err, "saving mappings")
	}
	s.mappings = updated
	return nil
}

// RemoveWhere removes every mapping matching predicate, persists the store and
// returns the removed mappings. Nothing is removed if persisting fails.
func (s *MappingStore) RemoveWhere(predicate func(models.Mapping) bool) ([]models.Mapping, error) {
	s.Lock()
	defer s.Unlock()

	kept := make([]models.Mapping, 0, len(s.mappings))
	removed := make([]models.Mapping, 0)
	for _, mapping := range s.mappings {
		if predicate(mapping) {
			removed = append(removed, mapping)
			continue
		}
		kept = append(kept, mapping)
	}

	if err := s.saver.SaveMappings(kept); err != nil {
		return nil, errors.Wrap(err, "saving mappings")
	}
	s.mappings = kept
	return removed, nil
}
