package types

// WindowGranularity is the calendar bucket size for revenue analytics
type WindowGranularity string

const (
	GranularityHour  WindowGranularity = "hour"
	GranularityDay   WindowGranularity = "day"
	GranularityWeek  WindowGranularity = "week"
	GranularityMonth WindowGranularity = "month"
)

func (g WindowGranularity) Validate() bool {
	switch g {
	case GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return true
	default:
		return false
	}
}

// DateLayout is the calendar-date key format used by the daily sales counters
const DateLayout = "2006-01-02"
