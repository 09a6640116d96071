package discovery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/version"
)

// registration is a running mDNS responder.
type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, text, nil)
}

// Advertiser announces the portal as an _http._tcp service. It
// implements wifimanager.Advertiser.
type Advertiser struct {
	// TLS marks the announcement as HTTPS.
	TLS bool

	logger   *zap.Logger
	register registerFunc

	mu     sync.Mutex
	active registration
}

// NewAdvertiser creates an Advertiser. A nil logger uses the global one.
func NewAdvertiser(logger *zap.Logger) *Advertiser {
	if logger == nil {
		logger = logging.Named("mdns")
	}
	return &Advertiser{logger: logger, register: zeroconfRegister}
}

// Advertise starts announcing hostname on port, replacing any previous
// announcement.
func (a *Advertiser) Advertise(hostname string, port int) error {
	if hostname == "" {
		return errors.New("mDNS hostname is empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		a.active.Shutdown()
		a.active = nil
	}

	reg, err := a.register(hostname, ServiceType, ServiceDomain, port, a.txt())
	if err != nil {
		return fmt.Errorf("failed to register mDNS service %s: %w", hostname, err)
	}
	a.active = reg
	a.logger.Info("advertising portal over mDNS",
		zap.String("instance", hostname),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return nil
}

// Shutdown withdraws the announcement.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return
	}
	a.active.Shutdown()
	a.active = nil
	a.logger.Info("mDNS advertisement withdrawn")
}

// Active reports whether an announcement is running.
func (a *Advertiser) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

func (a *Advertiser) txt() []string {
	tls := "0"
	if a.TLS {
		tls = "1"
	}
	return []string{
		txtPortal + "=" + portalMarker,
		txtVersion + "=" + version.Version,
		txtPath + "=/",
		txtTLS + "=" + tls,
	}
}
