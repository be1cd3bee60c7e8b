package batch

// SetEntropy replaces the entropy seed source used by SeedUnseeded.
func (a *Aggregator) SetEntropy(f func() (int64, error)) { a.entropy = f }
