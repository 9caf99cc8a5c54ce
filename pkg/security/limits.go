package security

// Audience is the consumer of a security report.
type Audience int

const (
	// AudienceUser is the vault owner at the terminal; reports are complete.
	AudienceUser Audience = iota
	// AudienceAgent is an AI agent over MCP; reports are truncated and
	// never name the affected records.
	AudienceAgent
)

// String returns the audience name.
func (a Audience) String() string {
	switch a {
	case AudienceUser:
		return "user"
	case AudienceAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Limits defines what a report may contain for an audience.
type Limits struct {
	// ReusedLimit is the max reuse groups to show (0 = unlimited).
	ReusedLimit int
	// WeakLimit is the max weak passwords to show (0 = unlimited).
	WeakLimit int
	// ShowRecords allows record ids and sites in issues.
	ShowRecords bool
}

// GetLimits returns the report limits for the given audience.
func GetLimits(audience Audience) Limits {
	switch audience {
	case AudienceUser:
		return Limits{
			ReusedLimit: 0, // Unlimited
			WeakLimit:   0,
			ShowRecords: true,
		}
	case AudienceAgent:
		return Limits{
			ReusedLimit: 3,
			WeakLimit:   3,
			ShowRecords: false,
		}
	default:
		return GetLimits(AudienceAgent)
	}
}

// IsLimited returns true if the results should be truncated.
func (l Limits) IsLimited() bool {
	return l.ReusedLimit > 0 || l.WeakLimit > 0
}
