package cache

import (
	"strings"

	"github.com/miyaichi/sincera-data-processor/pkg/publisher"
)

// Key generates the memo key for a request. Domains compare
// case-insensitively and publisher ids by their integer form, so "123" and
// "123.0" share one lookup.
func Key(req publisher.LookupRequest) string {
	value := strings.TrimSpace(req.Value)

	switch req.Kind {
	case publisher.KindDomain:
		value = strings.ToLower(strings.TrimSuffix(value, "."))
	case publisher.KindPublisherID:
		if id, err := publisher.NormalizePublisherID(value); err == nil {
			value = id
		}
	}

	return "sincera:" + string(req.Kind) + ":" + value
}
