// Package wifimanager provisions a device onto a WiFi network.
//
// A Manager first tries the network the radio remembers, then any
// configured credentials, and when none of them work it opens a
// configuration portal: a soft access point, a captive DNS responder that
// answers every name with the portal address, and an HTTP layer where a
// client picks a network and fills in custom parameters.
//
//	m := wifimanager.New(wifimanager.DefaultConfig(), driver,
//	    wifimanager.WithDNS(dnsServer),
//	)
//	m.AddParameter(params.New("mqtt_host", "MQTT host", "", params.TypeText))
//	m.OnConfigSaved(func() { persist(m.Parameters()) })
//
//	if !m.AutoConnect("sensor-setup", "") {
//	    // portal timed out without a connection
//	}
//	for {
//	    m.Loop()
//	    time.Sleep(100 * time.Millisecond)
//	}
//
// Every wait is bounded: a connection attempt by ConnectTimeout, a portal
// session by ConfigPortalTimeout. Both are measured on the manager's Clock,
// so tests substitute a fake one.
package wifimanager
