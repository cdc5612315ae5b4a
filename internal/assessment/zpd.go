package assessment

// ZPD is the zone of proximal development around a topic's current level.
type ZPD struct {
	Current Level `json:"current"`
	Stretch Level `json:"stretch"`
	TooHard Level `json:"too_hard"`
}

// ComputeZPD projects the window from the topic's tracked level: stretch is
// one stage up and too-hard two stages up, both clamped at Create. It never
// moves the tracked level itself.
func ComputeZPD(level Level) ZPD {
	return ZPD{
		Current: level,
		Stretch: level.Up(1),
		TooHard: level.Up(2),
	}
}
