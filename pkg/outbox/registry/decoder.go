package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Luis3c4/IMEI/pkg/enums"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry stores versioned payload decoders for consumers. New
// payload versions register alongside the old ones so consumers can drain
// mixed-version backlogs.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]decoderFunc)}
}

// Register stores a decoder for the event type and payload version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, fn decoderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[decoderKey{eventType: eventType, version: version}] = fn
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	fn, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return fn(payload)
}
