package mqtt

// Topic layout of the dispatch channel. Claims flow from every driver to the
// dispatcher on a shared topic; events fan out to everyone; results go to the
// per-driver topic only.
const (
	ClaimsTopic = "dispatch/claims"
	EventsTopic = "dispatch/events"
)

// ResultsTopic returns the direct-reply topic of one driver.
func ResultsTopic(driverID string) string {
	return "dispatch/drivers/" + driverID + "/results"
}
