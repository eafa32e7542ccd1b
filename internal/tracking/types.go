// Package tracking defines the core domain types shared across the service.
package tracking

import (
	"strings"
	"time"
)

// TargetKind distinguishes what a subscriber wants checked.
type TargetKind string

const (
	// KindContainer is a fixed-format container identifier (e.g. TKRU4471976).
	KindContainer TargetKind = "container"
	// KindContract is a free-format contract number.
	KindContract TargetKind = "contract"
)

// Target identifies a single thing to check. Immutable once issued.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// ContainerStatus holds the four fields parsed from the rendered tracking page.
// All values are free text exactly as presented by the source.
type ContainerStatus struct {
	Number    string `json:"number"`
	Location  string `json:"location"`
	Action    string `json:"action"`
	Country   string `json:"country"`
	Timestamp string `json:"timestamp"`
}

// ContractRecord is the structured field set returned by the source's
// contract endpoint, keyed by the source's own field names.
type ContractRecord struct {
	VerificationCode string `json:"kod_proverki,omitempty"`
	ContractNumber   string `json:"nomer_dogovora,omitempty"`
	ReceivedAt       string `json:"data_priema,omitempty"`
	VehicleModel     string `json:"model_avtomobilya,omitempty"`
	VIN              string `json:"nomer_kuzova,omitempty"`
	DeliveryPoint    string `json:"punkt_dostavki,omitempty"`
	LoadedAt         string `json:"data_pogruzki_v_kontejner,omitempty"`
	ContainerNumber  string `json:"nazvanie_sudna,omitempty"`
	ShippedAt        string `json:"data_otpravki,omitempty"`
	PaymentStatus    string `json:"status_oplaty,omitempty"`
}

// placeholderValues are the markers the source uses for "no value yet".
var placeholderValues = map[string]struct{}{
	"—": {}, // em dash
	"-":      {},
	"":       {},
	"None":   {},
	"null":   {},
}

// IsPlaceholder reports whether a field value is a textual no-value marker.
func IsPlaceholder(v string) bool {
	_, ok := placeholderValues[strings.TrimSpace(v)]
	return ok
}

// HasContainer reports whether the contract has been assigned a container.
// Both the container field and the shipping date must carry real values.
func (r ContractRecord) HasContainer() bool {
	return !IsPlaceholder(r.ContainerNumber) && !IsPlaceholder(r.ShippedAt)
}

// ContractPayload is the envelope the source's backend endpoint answers with.
type ContractPayload struct {
	Success bool `json:"success"`
	Data    struct {
		Found bool            `json:"found"`
		Data  *ContractRecord `json:"data"`
	} `json:"data"`
}

// Record returns the inner field set, or nil when the contract was not found.
func (p *ContractPayload) Record() *ContractRecord {
	if p == nil || !p.Data.Found {
		return nil
	}
	return p.Data.Data
}

// ContractLink is the derived mapping persisted when a contract lookup
// discovers a container. It is the sole source of container targets
// produced by contract lookups.
type ContractLink struct {
	ContractNumber  string `json:"contract_number"`
	ContainerNumber string `json:"container_number"`
	ShippedAt       string `json:"data_otpravki"`
	VehicleModel    string `json:"model_avtomobilya"`
	VIN             string `json:"nomer_kuzova"`
	DeliveryPoint   string `json:"punkt_dostavki"`
}

// Subscription is the persisted per-subscriber recurring-check configuration.
type Subscription struct {
	Days       []int    `json:"days"`
	Times      []string `json:"times"`
	Containers []string `json:"containers"`
	Contracts  []string `json:"contracts"`
}

// TimerCount is the number of live timers the subscription implies.
func (s Subscription) TimerCount() int {
	if len(s.Days) == 0 || len(s.Times) == 0 {
		return 0
	}
	return len(s.Days) * len(s.Times) * (len(s.Containers) + len(s.Contracts))
}

// Result is what a tracking call hands back to the chat layer: the rendered
// message, the structured status, and optional geo enrichment.
type Result struct {
	Target     Target
	Message    string
	Status     *ContainerStatus
	Contract   *ContractRecord
	Coords     *Coords
	DistanceKm *float64
	// Actions are follow-up hints the chat layer may render as buttons.
	Actions []Action
}

// Coords is a latitude/longitude pair in degrees.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ActionKind enumerates follow-up actions offered with a result.
type ActionKind string

const (
	ActionShowOnMap     ActionKind = "show_on_map"
	ActionTrackTarget   ActionKind = "track_container"
	ActionAddToSchedule ActionKind = "add_to_schedule"
)

// Action is a follow-up command hint attached to a Result.
type Action struct {
	Kind   ActionKind
	Target Target
}

// Clock returns the current time; injected so tests can control TTL math.
type Clock interface {
	Now() time.Time
}
