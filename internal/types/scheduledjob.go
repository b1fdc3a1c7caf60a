package types

// ScheduledJobStatus is the lifecycle state of a durable scheduled job
type ScheduledJobStatus string

const (
	ScheduledJobStatusPending   ScheduledJobStatus = "pending"
	ScheduledJobStatusClaimed   ScheduledJobStatus = "claimed"
	ScheduledJobStatusCompleted ScheduledJobStatus = "completed"
	ScheduledJobStatusCancelled ScheduledJobStatus = "cancelled"
)

func (s ScheduledJobStatus) String() string {
	return string(s)
}
