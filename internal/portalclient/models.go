package portalclient

// Network is one entry of a portal's scan list.
type Network struct {
	SSID           string `json:"ssid"`
	RSSI           int32  `json:"rssi"`
	EncryptionType uint8  `json:"encryptionType"`
}

// Open reports whether the network needs no password.
func (n Network) Open() bool {
	return n.EncryptionType == 0
}

// ParamSummary is a parameter as listed in the status document.
type ParamSummary struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Status is the portal's status document.
type Status struct {
	Status     string         `json:"status"`
	IP         string         `json:"ip"`
	LastResult uint8          `json:"lastResult"`
	Params     []ParamSummary `json:"params"`
}

// Connected reports whether the device's station link is up.
func (s *Status) Connected() bool {
	return s.Status == "Connected"
}

// Param is a custom parameter with its input type.
type Param struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Value      string `json:"value"`
	Type       string `json:"type"`
	Attributes string `json:"attributes,omitempty"`
}

// DeviceInfo is the device health document.
type DeviceInfo struct {
	FreeHeap uint64 `json:"free_heap"`
	UptimeMs int64  `json:"uptime_ms"`
	RSSI     int32  `json:"rssi"`
	IP       string `json:"ip"`
}

type resultBody struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}
