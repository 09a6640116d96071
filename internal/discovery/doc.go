// Package discovery announces configuration portals over mDNS and finds
// them from other machines.
//
// A running portal advertises an "_http._tcp" service named after its
// configured hostname. Its TXT record carries "portal=wifiportal", which
// is how a Scanner tells portals apart from printers and routers that
// advertise the same service type.
//
// # Usage Example
//
//	portals, err := discovery.ScanForPortals(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, p := range portals {
//	    fmt.Println(p, p.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
