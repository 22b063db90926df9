package state

import (
	"swapclear/native/settlement"
)

type storedFeesConfig struct {
	Fee          uint32
	FeeCollector string
}

// FeesConfig loads the process-wide fee configuration. Absent configuration
// defaults to a zero fee with no collector.
func (m *Manager) FeesConfig() (settlement.FeesConfig, error) {
	var record storedFeesConfig
	ok, err := m.KVGet(FeesConfigKey(), &record)
	if err != nil || !ok {
		return settlement.FeesConfig{}, err
	}
	return settlement.FeesConfig{
		Fee:          settlement.Pips(record.Fee),
		FeeCollector: record.FeeCollector,
	}, nil
}

// SetFeesConfig persists the fee configuration after validation.
func (m *Manager) SetFeesConfig(cfg settlement.FeesConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return m.KVPut(FeesConfigKey(), storedFeesConfig{
		Fee:          uint32(cfg.Fee),
		FeeCollector: cfg.FeeCollector,
	})
}
