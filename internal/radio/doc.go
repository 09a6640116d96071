// Package radio defines the WiFi radio the manager drives.
//
// A Driver hides whether the radio is real hardware, a host service such
// as NetworkManager, or a simulation. Two implementations ship with the
// module:
//
//   - radio/nmcli drives a Linux interface through the nmcli command
//   - radio/sim keeps everything in memory for tests and demos
package radio
