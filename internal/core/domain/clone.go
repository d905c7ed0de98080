package domain

// Clone returns a copy of c that shares no memory with it.
func (c Creative) Clone() Creative {
	c.NFTReference = cloneString(c.NFTReference)
	return c
}

// Clone returns a copy of s that shares no memory with it.
func (s AdSpot) Clone() AdSpot {
	s.PublisherEarn = cloneInt64(s.PublisherEarn)
	s.ShowKind = cloneString(s.ShowKind)
	return s
}

// Clone returns a copy of a that shares no memory with it.
func (a Agreement) Clone() Agreement {
	a.PublisherEarn = cloneInt64(a.PublisherEarn)
	a.ShowKind = cloneString(a.ShowKind)
	return a
}

// Clone returns a copy of t that shares no memory with it.
func (t Transfer) Clone() Transfer {
	t.SentAt = cloneInt64(t.SentAt)
	return t
}
