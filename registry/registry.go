package registry

import (
	"time"

	"github.com/webitel/inspection-exporter/internal/domain/model"
)

const (
	DeregisterCriticalServiceAfter = 30 * time.Second
	ServiceName                    = model.NamespaceName + "_" + model.AppServiceName
	CheckInterval                  = 1 * time.Minute
)

// ServiceRegistrator interface for managing service registration.
type ServiceRegistrator interface {
	Register() error
	Deregister() error
}

// Noop is used when no registry is configured.
type Noop struct{}

func (Noop) Register() error   { return nil }
func (Noop) Deregister() error { return nil }
