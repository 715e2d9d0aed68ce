package consul

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	consulapi "github.com/hashicorp/consul/api"

	conf "github.com/webitel/inspection-exporter/config"
	"github.com/webitel/inspection-exporter/internal/domain/model"
	"github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/registry"
)

type ConsulRegistry struct {
	registrationConfig *consulapi.AgentServiceRegistration
	client             *consulapi.Client
	stop               chan struct{}
	stopOnce           sync.Once
}

// NewConsulRegistry registers the HTTP API under the public address.
func NewConsulRegistry(config *conf.ConsulConfig) (*ConsulRegistry, error) {
	if config.Id == "" {
		return nil, errors.Internal(
			"service id is empty! (set it by '-id' flag)",
			errors.WithID("consul.registry.new_consul.check_args.service_id"),
		)
	}
	ip, port, err := net.SplitHostPort(config.PublicAddress)
	if err != nil {
		return nil, errors.Internal(
			"unable to parse address",
			errors.WithID("consul.registry.new_consul.parse_address.error"),
			errors.WithCause(err),
		)
	}
	parsedPort, err := strconv.Atoi(port)
	if err != nil {
		return nil, errors.Internal(
			"unable to parse port",
			errors.WithID("consul.registry.new_consul.parse_port.error"),
			errors.WithCause(err),
		)
	}

	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = config.Address
	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.new_consul_registry.consulapi_creation.error"),
		)
	}

	return &ConsulRegistry{
		client:             client,
		registrationConfig: registration(config.Id, ip, parsedPort),
		stop:               make(chan struct{}),
	}, nil
}

func registration(id, ip string, port int) *consulapi.AgentServiceRegistration {
	return &consulapi.AgentServiceRegistration{
		ID:      id,
		Name:    registry.ServiceName,
		Port:    port,
		Address: ip,
		Tags:    []string{"http"},
		Meta:    map[string]string{"version": model.CurrentVersion},
		Check: &consulapi.AgentServiceCheck{
			CheckID:                        checkID(id),
			DeregisterCriticalServiceAfter: registry.DeregisterCriticalServiceAfter.String(),
			TTL:                            registry.CheckInterval.String(),
		},
	}
}

func checkID(serviceID string) string { return "service:" + serviceID }

// Register registers the service and starts the TTL check-in loop.
func (c *ConsulRegistry) Register() error {
	if err := c.client.Agent().ServiceRegister(c.registrationConfig); err != nil {
		return errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.consul.register.error"),
		)
	}
	go c.runServiceCheck()
	return nil
}

func (c *ConsulRegistry) Deregister() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if err := c.client.Agent().ServiceDeregister(c.registrationConfig.ID); err != nil {
		return errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.consul.deregister.error"),
		)
	}
	slog.Info(fmtConsulLog("service was deregistered"))
	return nil
}

func (c *ConsulRegistry) doUpdateTTL() error {
	err := c.client.Agent().UpdateTTL(c.registrationConfig.Check.CheckID, "success", consulapi.HealthPassing)
	if err != nil {
		slog.Error(fmtConsulLog("failed to complete regular check-in"), slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (c *ConsulRegistry) runServiceCheck() {
	if err := c.doUpdateTTL(); err == nil {
		slog.Info(fmtConsulLog("service was registered"))
	}
	defer slog.Info(fmtConsulLog("stopped service checker"))
	ticker := time.NewTicker(registry.CheckInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			_ = c.doUpdateTTL()
		}
	}
}

func fmtConsulLog(s string) string {
	return fmt.Sprintf("consul: %s", s)
}
