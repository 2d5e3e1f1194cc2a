package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cell-broadcast/internal/domain/provider"
	"cell-broadcast/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ServiceInfo is the external service-configuration view this system needs.
type ServiceInfo struct {
	Active           bool `json:"active"`
	TrainingMode     bool `json:"training_mode"`
	OrganisationLive bool `json:"organisation_live"`
}

// ServiceConfig resolves per-service configuration: the external
// active/training flags and the locally held broadcast settings.
type ServiceConfig interface {
	Info(ctx context.Context, serviceID uuid.UUID) (ServiceInfo, error)
	Settings(ctx context.Context, serviceID uuid.UUID) (provider.ServiceBroadcastSettings, error)
}

// InfoSource supplies the external half of ServiceConfig.
type InfoSource interface {
	Info(ctx context.Context, serviceID uuid.UUID) (ServiceInfo, error)
}

// StaticInfoSource serves service flags from memory; tests and local
// development stand in for the real service-administration system with it.
type StaticInfoSource struct {
	Services map[uuid.UUID]ServiceInfo
}

func (s *StaticInfoSource) Info(ctx context.Context, serviceID uuid.UUID) (ServiceInfo, error) {
	info, ok := s.Services[serviceID]
	if !ok {
		// Unknown services default to inactive.
		return ServiceInfo{}, nil
	}
	return info, nil
}

type serviceConfig struct {
	source   InfoSource
	settings repository.SettingsRepository
}

func NewServiceConfig(source InfoSource, settings repository.SettingsRepository) ServiceConfig {
	return &serviceConfig{source: source, settings: settings}
}

func (c *serviceConfig) Info(ctx context.Context, serviceID uuid.UUID) (ServiceInfo, error) {
	return c.source.Info(ctx, serviceID)
}

func (c *serviceConfig) Settings(ctx context.Context, serviceID uuid.UUID) (provider.ServiceBroadcastSettings, error) {
	return c.settings.Get(ctx, serviceID)
}

const settingsCacheTTL = 5 * time.Minute

// CachedServiceConfig fronts another ServiceConfig with a redis cache for
// settings lookups; dispatch fan-out hits them on every event.
type CachedServiceConfig struct {
	inner  ServiceConfig
	client *redis.Client
}

func NewCachedServiceConfig(inner ServiceConfig, client *redis.Client) *CachedServiceConfig {
	return &CachedServiceConfig{inner: inner, client: client}
}

func (c *CachedServiceConfig) Info(ctx context.Context, serviceID uuid.UUID) (ServiceInfo, error) {
	return c.inner.Info(ctx, serviceID)
}

func (c *CachedServiceConfig) Settings(ctx context.Context, serviceID uuid.UUID) (provider.ServiceBroadcastSettings, error) {
	key := fmt.Sprintf("broadcast:settings:%s", serviceID)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var s provider.ServiceBroadcastSettings
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, nil
		}
	}
	s, err := c.inner.Settings(ctx, serviceID)
	if err != nil {
		return provider.ServiceBroadcastSettings{}, err
	}
	if raw, err := json.Marshal(s); err == nil {
		c.client.Set(ctx, key, raw, settingsCacheTTL)
	}
	return s, nil
}
