package netinfo

import (
	"context"
	"fmt"
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/net"
	"go.uber.org/zap"
)

// Interface is one host network device and its addresses in CIDR form.
type Interface struct {
	Name     string
	Loopback bool
	Addrs    []string
}

// Options controls address discovery.
type Options struct {
	// ExternalInterface and InternalInterface pin the devices used for the
	// public and cluster addresses; empty means any non-loopback device.
	ExternalInterface string
	InternalInterface string
	// PublicIP and InternalIP override the discovered addresses.
	PublicIP   string
	InternalIP string
}

// Addresses is what the agent advertises and hands to workers.
type Addresses struct {
	// PrivateIP is the address of the external device.
	PrivateIP string
	// PublicIP is PrivateIP unless overridden.
	PublicIP string
	// ClusterIP is the address reported to the coordinator.
	ClusterIP         string
	ExternalInterface string
	InternalInterface string
	// TrafficInterface is the device watched for network load.
	TrafficInterface string
}

// Discover inspects the host interfaces with gopsutil.
func Discover(ctx context.Context, opts Options, logger *zap.Logger) (Addresses, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stats, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return Addresses{}, fmt.Errorf("list network interfaces: %w", err)
	}
	ifaces := make([]Interface, 0, len(stats))
	for _, stat := range stats {
		iface := Interface{Name: stat.Name}
		for _, flag := range stat.Flags {
			if flag == "loopback" {
				iface.Loopback = true
			}
		}
		for _, addr := range stat.Addrs {
			iface.Addrs = append(iface.Addrs, addr.Addr)
		}
		ifaces = append(ifaces, iface)
	}

	addrs := Resolve(ifaces, opts)
	logger.Named("netinfo").Info("addresses resolved",
		zap.String("privateIP", addrs.PrivateIP),
		zap.String("publicIP", addrs.PublicIP),
		zap.String("clusterIP", addrs.ClusterIP),
		zap.String("externalInterface", addrs.ExternalInterface),
		zap.String("internalInterface", addrs.InternalInterface),
		zap.String("trafficInterface", addrs.TrafficInterface),
	)
	return addrs, nil
}

// Resolve picks, in interface order, the first non-loopback IPv4 address of
// the configured external and internal devices and applies the overrides.
func Resolve(ifaces []Interface, opts Options) Addresses {
	var (
		out                        Addresses
		externalAddr, internalAddr string
	)
	for _, iface := range ifaces {
		if iface.Loopback {
			continue
		}
		for _, cidr := range iface.Addrs {
			ip := ipv4(cidr)
			if ip == "" || isLoopbackIP(ip) {
				continue
			}
			if out.ExternalInterface == "" && matches(iface.Name, opts.ExternalInterface) {
				out.ExternalInterface = iface.Name
				externalAddr = ip
			}
			if out.InternalInterface == "" && matches(iface.Name, opts.InternalInterface) {
				out.InternalInterface = iface.Name
				internalAddr = ip
			}
		}
	}

	out.PrivateIP = externalAddr
	out.PublicIP = externalAddr
	if opts.PublicIP != "" {
		out.PublicIP = opts.PublicIP
	}
	out.ClusterIP = internalAddr
	if opts.InternalIP != "" {
		out.ClusterIP = opts.InternalIP
	}

	out.TrafficInterface = out.ExternalInterface
	if out.TrafficInterface == "" {
		out.TrafficInterface = out.InternalInterface
	}
	if out.TrafficInterface == "" {
		for _, iface := range ifaces {
			if !iface.Loopback {
				out.TrafficInterface = iface.Name
				break
			}
		}
	}
	return out
}

func matches(name, want string) bool {
	return want == "" || name == want
}

func ipv4(cidr string) string {
	value := cidr
	if idx := strings.IndexByte(value, '/'); idx >= 0 {
		value = value[:idx]
	}
	ip := net.ParseIP(value)
	if ip == nil || ip.To4() == nil {
		return ""
	}
	return ip.To4().String()
}

func isLoopbackIP(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
