package combat

// Snapshot is every piece of combat state a save must round-trip to resume
// a battle exactly.
type Snapshot struct {
	Units  []Unit  `json:"units"`
	Battle *Battle `json:"battle,omitempty"`
	Ledger Ledger  `json:"ledger"`

	LastID      uint32            `json:"lastId"`
	Occurrences map[string]uint32 `json:"occurrences"`
	Current     string            `json:"current"`
	Memorial    string            `json:"memorial"`

	Cooldown int  `json:"cooldown"`
	Threnody bool `json:"threnody"`
	Tick     int  `json:"tick"`
	Fought   int  `json:"fought"`

	RNGKind     RNGKind `json:"rngKind"`
	RNGSeed     int64   `json:"rngSeed"`
	LegacyState uint16  `json:"legacyState"`
}

// Snapshot copies the current state. The copy shares nothing with c.
func (c *Combat) Snapshot() Snapshot {
	s := Snapshot{
		Units:       append([]Unit(nil), c.units...),
		Ledger:      c.ledger,
		LastID:      c.namer.LastID,
		Occurrences: make(map[string]uint32, len(c.namer.Occurrences)),
		Current:     c.namer.Current,
		Memorial:    c.namer.Memorial,
		Cooldown:    c.cooldown,
		Threnody:    c.threnody,
		Tick:        c.tick,
		Fought:      c.fought,
		RNGKind:     c.rng.Kind(),
	}
	for k, v := range c.namer.Occurrences {
		s.Occurrences[k] = v
	}
	if c.battle != nil {
		b := *c.battle
		s.Battle = &b
	}
	if r, ok := c.rng.(*RNG); ok {
		s.RNGSeed = r.Seed()
		s.LegacyState = r.LegacyState()
	}
	return s
}

// Restore replaces the current state with s. The randomness source keeps its
// kind; a legacy generator resumes from the saved state.
func (c *Combat) Restore(s Snapshot) {
	c.units = append(c.units[:0], s.Units...)
	c.ledger = s.Ledger
	c.namer = &Namer{
		LastID:      s.LastID,
		Occurrences: make(map[string]uint32, len(s.Occurrences)),
		Current:     s.Current,
		Memorial:    s.Memorial,
	}
	if c.namer.Memorial == "" {
		c.namer.Memorial = DefaultMemorial
	}
	for k, v := range s.Occurrences {
		c.namer.Occurrences[k] = v
	}
	c.battle = nil
	if s.Battle != nil {
		b := *s.Battle
		c.battle = &b
	}
	c.cooldown = s.Cooldown
	c.threnody = s.Threnody
	c.tick = s.Tick
	c.fought = s.Fought
	if r, ok := c.rng.(*RNG); ok && r.Kind() == RNGLegacy {
		r.SetLegacyState(s.LegacyState)
	}
	c.grid.Rebuild(c.units)
}
