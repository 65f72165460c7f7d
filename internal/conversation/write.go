package conversation

import "time"

// Now is the timestamp source for stored conversations. Millisecond
// precision is what every backend can round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// PrepareCreate validates c and stamps it for its first write.
func PrepareCreate(c *Conversation, now time.Time) error {
	if err := Prepare(c); err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Version = 1
	return nil
}

// PrepareSave validates c and stamps it for an update. It returns the
// version the stored copy must still carry for the write to succeed; callers
// put it back into c.Version when the write fails.
func PrepareSave(c *Conversation, now time.Time) (int64, error) {
	if err := Prepare(c); err != nil {
		return 0, err
	}
	expected := c.Version
	c.UpdatedAt = now
	c.Version = expected + 1
	return expected, nil
}

// PrepareTitle normalizes a title set through UpdateTitle.
func PrepareTitle(title string) (string, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return "", validationf("title is required")
	}
	return title, nil
}
