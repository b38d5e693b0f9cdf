package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TicksPerSecond is the Interop subtitle time resolution.
const TicksPerSecond = 250

// Time is a subtitle timestamp counted in ticks of 1/250 s.
type Time int64

// NewTime builds a Time from hours, minutes, seconds and ticks.
func NewTime(h, m, s, ticks int) Time {
	return Time(((int64(h)*60+int64(m))*60+int64(s))*TicksPerSecond + int64(ticks))
}

// ParseTime accepts "HH:MM:SS:TTT" (ticks) and "HH:MM:SS.sss" (decimal seconds).
func ParseTime(value string) (Time, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	switch len(parts) {
	case 4:
		fields := make([]int, 4)
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid subtitle time %q", value)
			}
			fields[i] = n
		}
		if fields[3] >= TicksPerSecond {
			return 0, fmt.Errorf("invalid subtitle time %q: tick field out of range", value)
		}
		return NewTime(fields[0], fields[1], fields[2], fields[3]), nil
	case 3:
		h, errH := strconv.Atoi(parts[0])
		m, errM := strconv.Atoi(parts[1])
		s, errS := strconv.ParseFloat(parts[2], 64)
		if errH != nil || errM != nil || errS != nil || h < 0 || m < 0 || s < 0 {
			return 0, fmt.Errorf("invalid subtitle time %q", value)
		}
		whole := math.Floor(s)
		ticks := int(math.Round((s - whole) * TicksPerSecond))
		return NewTime(h, m, int(whole), 0) + Time(ticks), nil
	default:
		return 0, fmt.Errorf("invalid subtitle time %q", value)
	}
}

// parseTicksOrTime reads fade durations, which Interop writes either as a
// bare tick count or as a full timestamp.
func parseTicksOrTime(value string) (Time, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ":") {
		return ParseTime(value)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid tick count %q", value)
	}
	return Time(n), nil
}

// Ticks returns the raw tick count.
func (t Time) Ticks() int64 { return int64(t) }

// Seconds returns t as fractional seconds.
func (t Time) Seconds() float64 { return float64(t) / TicksPerSecond }

// String formats t as HH:MM:SS:TTT.
func (t Time) String() string {
	ticks := int64(t)
	sign := ""
	if ticks < 0 {
		sign = "-"
		ticks = -ticks
	}
	totalSeconds := ticks / TicksPerSecond
	return fmt.Sprintf("%s%02d:%02d:%02d:%03d",
		sign,
		totalSeconds/3600,
		(totalSeconds/60)%60,
		totalSeconds%60,
		ticks%TicksPerSecond)
}
