package domain

// GroupStatus is the lifecycle state of a campaign group.
type GroupStatus string

const (
	GroupRunning   GroupStatus = "running"
	GroupCancelled GroupStatus = "cancelled"
)

// CampaignStatus is the lifecycle state of a single campaign.
type CampaignStatus string

const (
	CampaignSearching   CampaignStatus = "searching"
	CampaignCalling     CampaignStatus = "calling"
	CampaignCompleted   CampaignStatus = "completed"
	CampaignNoProviders CampaignStatus = "no_providers"
	CampaignCancelled   CampaignStatus = "cancelled"
	CampaignError       CampaignStatus = "error"
)

// IsTerminal reports whether no further campaign transition occurs.
func (s CampaignStatus) IsTerminal() bool {
	switch s {
	case CampaignCompleted, CampaignNoProviders, CampaignCancelled, CampaignError:
		return true
	}
	return false
}

// ResultStatus is the per-provider negotiation session state.
type ResultStatus string

const (
	ResultQueued         ResultStatus = "queued"
	ResultDialing        ResultStatus = "dialing"
	ResultConnected      ResultStatus = "connected"
	ResultNegotiating    ResultStatus = "negotiating"
	ResultCompleted      ResultStatus = "completed"
	ResultBooked         ResultStatus = "booked"
	ResultNoAvailability ResultStatus = "no_availability"
	ResultFailed         ResultStatus = "failed"
	ResultTimeout        ResultStatus = "timeout"
	ResultDisconnected   ResultStatus = "disconnected"
)

// statusRank orders session states so that transitions only ever advance.
// `completed` is a soft terminal: a poll that sees the session end synthesizes
// it, and a later push event carrying the real outcome (booked/no_availability)
// may still upgrade it. Hard terminals share a rank, so whichever of the two
// completion signals lands first wins and the loser becomes a no-op.
var statusRank = map[ResultStatus]int{
	ResultQueued:         0,
	ResultDialing:        10,
	ResultConnected:      20,
	ResultNegotiating:    30,
	ResultCompleted:      40,
	ResultBooked:         50,
	ResultNoAvailability: 50,
	ResultFailed:         50,
	ResultTimeout:        50,
	ResultDisconnected:   50,
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to ResultStatus) bool {
	return statusRank[to] > statusRank[from]
}

// IsTerminal reports whether the session reached any final state,
// including the synthesized `completed`.
func (s ResultStatus) IsTerminal() bool {
	return statusRank[s] >= statusRank[ResultCompleted]
}

// IsResolved reports whether the session produced a definitive outcome,
// i.e. a push event or poll already settled it and polling may stop.
func (s ResultStatus) IsResolved() bool {
	return s == ResultBooked || s == ResultNoAvailability
}
