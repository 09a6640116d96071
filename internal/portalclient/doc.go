// Package portalclient is a Go client for the JSON API of a configuration
// portal.
//
// A machine that has joined a device's access point (or found the device
// on the LAN with the discovery package) can list networks, pick one and
// set custom parameters without a browser:
//
//	c := portalclient.NewClient(portalclient.DefaultPortalIP, 80)
//	ok, err := c.Connect(ctx, "home", "secret123")
//
// Reads are retried with exponential backoff on network and server
// errors. Connect, UpdateParams and Reset change device state and are
// sent once. Every failure is a *ClientError whose Type says what went
// wrong; GetTroubleshootingHint turns it into advice for the user.
package portalclient
