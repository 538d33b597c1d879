package combat

const gloryStep = 10 // bonus honor added per consecutive win with Glory

// Ledger is the cross-battle honor score.
//
// Honor is signed: a loss subtracts the losing cap with no floor, so the
// ledger can go into debt.
type Ledger struct {
	Honor   int64
	Bonus   int64 // consecutive-win bonus, paid on top of the next win
	Counted bool  // the current battle's outcome has been scored
}

// Lose scores a lost battle once. It returns false if the battle was
// already scored.
func (l *Ledger) Lose(cap int) bool {
	if l.Counted {
		return false
	}
	l.Bonus = 0
	l.Honor -= int64(cap)
	l.Counted = true
	return true
}

// Win scores a won battle once, paying cap plus the current bonus. With
// glory the bonus grows for the next battle. It returns the reward and
// whether anything was applied.
func (l *Ledger) Win(cap int, glory bool) (int64, bool) {
	if l.Counted {
		return 0, false
	}
	reward := int64(cap) + l.Bonus
	l.Honor += reward
	if glory {
		l.Bonus += gloryStep
	}
	l.Counted = true
	return reward, true
}

// Award adds honor granted outside combat (monuments, threnodies).
func (l *Ledger) Award(n int64) {
	l.Honor += n
}

// Settle clears the per-battle scoring guard.
func (l *Ledger) Settle() {
	l.Counted = false
}
