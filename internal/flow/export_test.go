package flow

import "time"

func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}
