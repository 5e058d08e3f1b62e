package consul

import (
	"fmt"
	"net"

	"github.com/egfanboy/badge-builder/internal/app"
	"github.com/hashicorp/consul/api"
)

var consulClient *api.Client

const (
	KeyScheme = "scheme"

	serviceName = "badge-builder"
)

func NewConsulClient(cfg app.ConsulConfig) error {
	if consulClient != nil {
		return nil
	}

	defaultConfig := api.DefaultConfig()

	defaultConfig.Address = fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	defaultConfig.Scheme = cfg.Scheme

	client, err := api.NewClient(defaultConfig)
	if err != nil {
		return err
	}

	consulClient = client

	return nil
}

func findTrafficIp() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return net.IP{}, err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP, nil
}

func serviceId(ip net.IP) string {
	return fmt.Sprintf("%s-%s", serviceName, ip)
}

func newRegistration(self app.Config, ip net.IP) *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:      serviceId(ip),
		Name:    serviceName,
		Port:    self.Port,
		Address: ip.String(),
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("%s://%s:%v/api/v1/health", self.Scheme, ip, self.Port),
			Interval: "10s",
			Timeout:  "30s",
		},
		Meta: map[string]string{KeyScheme: self.Scheme},
	}
}

func RegisterService(self app.Config) error {
	trafficIp, err := findTrafficIp()
	if err != nil {
		return err
	}

	return consulClient.Agent().ServiceRegister(newRegistration(self, trafficIp))
}

func UnregisterService() error {
	trafficIp, err := findTrafficIp()
	if err != nil {
		return err
	}

	return consulClient.Agent().ServiceDeregister(serviceId(trafficIp))
}
