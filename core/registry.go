package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type GatewayRegistry struct {
	mu       sync.RWMutex
	gateways map[string]PaymentGateway
}

func NewGatewayRegistry() *GatewayRegistry {
	return &GatewayRegistry{gateways: make(map[string]PaymentGateway)}
}

func (r *GatewayRegistry) Register(gateway PaymentGateway) error {
	if gateway == nil {
		return fmt.Errorf("core: gateway is nil")
	}
	id := strings.TrimSpace(gateway.ID())
	if id == "" {
		return fmt.Errorf("core: gateway id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.gateways[id]; exists {
		return fmt.Errorf("core: gateway already registered: %s", id)
	}
	r.gateways[id] = gateway
	return nil
}

func (r *GatewayRegistry) Get(gatewayID string) (PaymentGateway, bool) {
	id := strings.TrimSpace(gatewayID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	gateway, ok := r.gateways[id]
	r.mu.RUnlock()
	return gateway, ok
}

func (r *GatewayRegistry) List() []PaymentGateway {
	r.mu.RLock()
	keys := make([]string, 0, len(r.gateways))
	for id := range r.gateways {
		keys = append(keys, id)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	gateways := make([]PaymentGateway, 0, len(keys))
	r.mu.RLock()
	for _, id := range keys {
		gateways = append(gateways, r.gateways[id])
	}
	r.mu.RUnlock()
	return gateways
}

var _ Registry = (*GatewayRegistry)(nil)
