package state

// GenesisApplied reports whether the genesis fixture has already been applied
// to this database.
func (m *Manager) GenesisApplied() (bool, error) {
	var marker uint8
	ok, err := m.KVGet(genesisAppliedKeyStr, &marker)
	if err != nil {
		return false, err
	}
	return ok && marker == 1, nil
}

// SetGenesisApplied records that the genesis fixture has been applied.
func (m *Manager) SetGenesisApplied() error {
	return m.KVPut(genesisAppliedKeyStr, uint8(1))
}
