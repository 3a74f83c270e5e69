package logic

// updateAlarm advances the alarm debounce state machine by one poll.
//
// Clear -> Active on the first out of bounds poll. While active and past the
// grace period the buzzer trills: it pulses only on odd seconds of the clock.
// A clock that reads earlier than the episode start has wrapped; the episode
// restarts at the new reading and the same tick is treated as past grace.
func (c *Controller) updateAlarm(outOfBounds bool, s Stats) {
	now := c.clock.Millis()

	if !outOfBounds {
		if c.alarmActive {
			c.log.Printf("Clearing Alarm")
			c.events = append(c.events, Event{Type: EventAlarmCleared, Millis: now, State: c.currentState, Stats: s})
		}
		c.alarmActive = false
		c.alarmSince = 0
		return
	}

	// XXX: the immediate beep on rollover is kept as observed on the device.
	rollover := now < c.alarmSince
	if rollover {
		c.alarmSince = now
	}

	if !c.alarmActive {
		c.log.Printf("Registering Alarm")
		c.alarmActive = true
		c.alarmSince = now
		c.events = append(c.events, Event{Type: EventAlarmRegistered, Millis: now, State: c.currentState, Stats: s})
		return
	}

	elapsed := now - c.alarmSince
	if int64(elapsed) > c.gracePeriod.Milliseconds() || rollover {
		if (now/1000)%2 == 1 && c.buzzer != nil {
			c.buzzer.Pulse()
		}
	}
}

// AlarmActive reports whether an out of bounds episode is in progress.
func (c *Controller) AlarmActive() bool {
	return c.alarmActive
}

// AlarmActiveSince returns the clock reading at which the current episode
// began, and false when no episode is active.
func (c *Controller) AlarmActiveSince() (uint32, bool) {
	return c.alarmSince, c.alarmActive
}
