package model

// HealthRes is returned by /healthz.
type HealthRes struct {
	Status    string `json:"status"`
	LoggedIn  bool   `json:"loggedIn"`
	Expired   bool   `json:"expired"`
	DeviceNum int    `json:"deviceNum"`
}

const (
	HealthUp       = "up"
	HealthDegraded = "degraded"
)
