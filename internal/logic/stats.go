package logic

// Stats returns min, average and max over the latest readings.
func (c *Controller) Stats() (Stats, error) {
	return computeStats(c.latestReadings)
}

func computeStats(readings []float64) (Stats, error) {
	if len(readings) == 0 {
		return Stats{}, ErrNoInputs
	}

	s := Stats{Min: readings[0], Max: readings[0]}
	var sum float64
	for _, v := range readings {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Avg = sum / float64(len(readings))
	return s, nil
}
