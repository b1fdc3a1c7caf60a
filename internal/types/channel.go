package types

// Channel is a delivery channel for customer messaging
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

func (c Channel) String() string {
	return string(c)
}

// Validate checks that the channel is one of the supported delivery channels
func (c Channel) Validate() bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp, ChannelSMS:
		return true
	default:
		return false
	}
}
