package service

import (
	"path/filepath"
	"strconv"

	"github.com/maptrack/maptrack/internal/store"
	"github.com/maptrack/maptrack/internal/tracking"
)

// historyLimit caps the per-subscriber search history length.
const historyLimit = 20

// DefaultCity is used for distance rendering when the subscriber has not
// picked a destination city.
const DefaultCity = "Москва"

// Stores bundles the facade's persistent JSON documents.
type Stores struct {
	// History holds recent container searches per subscriber.
	History *store.File[[]string]
	// ContractHistory holds recent contract searches per subscriber.
	ContractHistory *store.File[[]string]
	// Cities holds each subscriber's destination city.
	Cities *store.File[string]
	// Links holds derived contract-to-container mappings per subscriber,
	// keyed inside by contract number.
	Links *store.File[map[string]tracking.ContractLink]
}

// OpenStores opens (creating as needed) the facade documents under dir.
func OpenStores(dir string) (Stores, error) {
	var s Stores
	var err error
	if s.History, err = store.NewFile[[]string](filepath.Join(dir, "history.json")); err != nil {
		return Stores{}, err
	}
	if s.ContractHistory, err = store.NewFile[[]string](filepath.Join(dir, "contract_history.json")); err != nil {
		return Stores{}, err
	}
	if s.Cities, err = store.NewFile[string](filepath.Join(dir, "cities.json")); err != nil {
		return Stores{}, err
	}
	if s.Links, err = store.NewFile[map[string]tracking.ContractLink](filepath.Join(dir, "contracts.json")); err != nil {
		return Stores{}, err
	}
	return s, nil
}

// SubscriberCount reports how many subscribers have any recorded history.
// Used to seed the active-subscriber gauge at boot.
func (s Stores) SubscriberCount() (int, error) {
	seen := make(map[string]struct{})
	for _, doc := range []*store.File[[]string]{s.History, s.ContractHistory} {
		m, err := doc.Load()
		if err != nil {
			return 0, err
		}
		for k := range m {
			seen[k] = struct{}{}
		}
	}
	return len(seen), nil
}

func subscriberKey(subscriber int64) string {
	return strconv.FormatInt(subscriber, 10)
}

// recordHistory prepends id to the subscriber's history, de-duplicated and
// capped at historyLimit.
func recordHistory(doc *store.File[[]string], subscriber int64, id string) error {
	return doc.Mutate(func(m map[string][]string) error {
		key := subscriberKey(subscriber)
		prev := m[key]
		next := make([]string, 0, len(prev)+1)
		next = append(next, id)
		for _, e := range prev {
			if e != id {
				next = append(next, e)
			}
		}
		if len(next) > historyLimit {
			next = next[:historyLimit]
		}
		m[key] = next
		return nil
	})
}
