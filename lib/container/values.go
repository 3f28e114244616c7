package container

// Store attaches value to the container under key. Attachments let other
// packages keep per-container bookkeeping that lives and dies with the
// container instead of in process-wide tables.
func (c *Container) Store(key, value any) {
	c.valuesMu.Lock()
	defer c.valuesMu.Unlock()
	c.values[key] = value
}

// Load returns the attachment stored under key.
func (c *Container) Load(key any) (any, bool) {
	c.valuesMu.Lock()
	defer c.valuesMu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// LoadOrStore returns the attachment under key, storing the result of init
// first when there is none.
func (c *Container) LoadOrStore(key any, init func() any) any {
	c.valuesMu.Lock()
	defer c.valuesMu.Unlock()
	if v, ok := c.values[key]; ok {
		return v
	}
	v := init()
	c.values[key] = v
	return v
}

// Delete removes the attachment under key.
func (c *Container) Delete(key any) {
	c.valuesMu.Lock()
	defer c.valuesMu.Unlock()
	delete(c.values, key)
}
