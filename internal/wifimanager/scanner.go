package wifimanager

import (
	"go.uber.org/zap"
)

// ScanResult is one visible network.
type ScanResult struct {
	SSID           string `json:"ssid"`
	RSSI           int32  `json:"rssi"`
	EncryptionType uint8  `json:"encryptionType"`
}

// ScanNetworks lists visible networks. Without force, results from the
// previous scan are reused when there are any. A failed scan is logged
// and yields an empty list.
func (m *Manager) ScanNetworks(force bool) []ScanResult {
	if !force {
		m.mu.Lock()
		cached := m.scanCache
		m.mu.Unlock()
		if len(cached) > 0 {
			return append([]ScanResult(nil), cached...)
		}
	}

	nets, err := m.radio.Scan(force)
	if err != nil {
		m.logger.Warn("network scan failed", zap.Error(err))
		return []ScanResult{}
	}

	results := make([]ScanResult, 0, len(nets))
	for _, n := range nets {
		results = append(results, ScanResult{SSID: n.SSID, RSSI: n.RSSI, EncryptionType: n.Encryption})
	}
	m.logger.Debug("network scan complete", zap.Int("networks", len(results)), zap.Bool("forced", force))

	m.mu.Lock()
	m.scanCache = results
	m.mu.Unlock()
	return append([]ScanResult(nil), results...)
}
