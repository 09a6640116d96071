// Package tui is the interactive network picker behind
// 'wifiportal client wizard'.
//
// The wizard asks a portal for the networks its device can see, lets the
// user pick one, prompts for a password when the network is protected and
// reports whether the device joined. It is a single Bubble Tea model
// stepping through four screens:
//
//	scanning -> networks -> password -> connecting -> done
//
// Open networks skip the password screen. From the networks screen 'r'
// rescans; from a failed result 'r' goes back to the list.
//
// The portal is reached through the Portal interface, which
// *portalclient.Client satisfies:
//
//	c := portalclient.NewClient("192.168.4.1", 80)
//	result, err := tui.Run(c, 30*time.Second)
//	if err == nil && result.Connected {
//	    fmt.Println("joined", result.SSID)
//	}
package tui
