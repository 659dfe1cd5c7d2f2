package entity

import "strings"

// Kind distinguishes virtualization hosts from guest machines
type Kind int

const (
	Host Kind = iota
	Guest
)

// String returns the kind name used in logs and metric labels
func (k Kind) String() string {
	switch k {
	case Host:
		return "host"
	case Guest:
		return "guest"
	default:
		return "unknown"
	}
}

// PowerState is the power state reported by the management plane
type PowerState string

const (
	PoweredOn  PowerState = "poweredOn"
	PoweredOff PowerState = "poweredOff"
	Suspended  PowerState = "suspended"
	Unknown    PowerState = "unknown"
)

// GuestSizing holds the static sizing attributes of a guest
type GuestSizing struct {
	NumCPU        int     `json:"numCpu"`
	MemoryMB      float64 `json:"memoryMB"`
	ProvisionedGB float64 `json:"provisionedGB"`
	UsedGB        float64 `json:"usedGB"`
}

// HostSizing holds the static sizing attributes of a host
type HostSizing struct {
	NumCPU        int     `json:"numCpu"`
	CPUTotalMHz   int64   `json:"cpuTotalMhz"`
	CPUUsageMHz   int64   `json:"cpuUsageMhz"`
	MemoryTotalMB float64 `json:"memoryTotalMB"`
	MemoryUsageMB float64 `json:"memoryUsageMB"`
}

// MonitoredEntity is a read-only snapshot of a host or guest taken once per
// collection cycle.
type MonitoredEntity struct {
	Name           string     `json:"name"`
	Kind           Kind       `json:"kind"`
	PowerState     PowerState `json:"powerState"`
	ParentHostName string     `json:"parentHostName,omitempty"`

	Guest GuestSizing `json:"guest,omitempty"`
	Host  HostSizing  `json:"host,omitempty"`

	// Ref is an opaque handle the counter-fetch collaborator uses to address
	// the entity upstream. The core never interprets it.
	Ref string `json:"ref,omitempty"`
}

// CPUCount returns the cpu count for the entity's kind
func (e MonitoredEntity) CPUCount() int {
	if e.Kind == Guest {
		return e.Guest.NumCPU
	}
	return e.Host.NumCPU
}

// TagName returns the entity name normalized for use as a tag value
func (e MonitoredEntity) TagName() string {
	return NormalizeName(e.Name)
}

// NormalizeName replaces every space with an underscore. No other character
// is substituted.
func NormalizeName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// ShouldCollect reports whether the entity is eligible for collection.
// Only powered-off entities are skipped; unknown states fail open.
func ShouldCollect(e MonitoredEntity) bool {
	return e.PowerState != PoweredOff
}
