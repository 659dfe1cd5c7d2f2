package lineproto

import (
	"github.com/aaronlmathis/vsflux/internal/aggregate"
	"github.com/aaronlmathis/vsflux/internal/entity"
)

const (
	// GuestMeasurement is the identity measurement for guest machines
	GuestMeasurement = "vmware_guest"

	// HostMeasurement is the identity measurement for hypervisor hosts
	HostMeasurement = "vmware_esxi"

	// NamespacePrefix is prepended to every namespace measurement
	NamespacePrefix = "vmware_"
)

// Tag is a single key=value tag pair
type Tag struct {
	Key   string
	Value string
}

// Identity is the fixed identity block of an entity's record
type Identity struct {
	Measurement string
	Host        string
	Tags        []Tag
	Fields      []aggregate.Field
}

// NewIdentity builds the identity block for an entity that passed the filter
func NewIdentity(e entity.MonitoredEntity) Identity {
	host := e.TagName()
	id := Identity{
		Host: host,
		Tags: []Tag{{Key: "host", Value: host}},
	}

	if e.Kind == entity.Guest {
		id.Measurement = GuestMeasurement
		if e.ParentHostName != "" {
			id.Tags = append(id.Tags, Tag{Key: "esxi_host", Value: entity.NormalizeName(e.ParentHostName)})
		}
		id.Fields = []aggregate.Field{
			{Name: "cpu_NumCpu", Value: aggregate.Int(int64(e.Guest.NumCPU))},
			{Name: "mem_MemorySizeMB", Value: wholeNumber(e.Guest.MemoryMB)},
			{Name: "storage_ProvisionedGB", Value: aggregate.Float(aggregate.Round(e.Guest.ProvisionedGB, 2))},
			{Name: "storage_UsedGB", Value: aggregate.Float(aggregate.Round(e.Guest.UsedGB, 2))},
		}
		return id
	}

	id.Measurement = HostMeasurement
	// CPU MHz figures pass through unrounded while memory is rounded.
	id.Fields = []aggregate.Field{
		{Name: "cpu_NumCpu", Value: aggregate.Int(int64(e.Host.NumCPU))},
		{Name: "cpu_CpuTotalMhz", Value: aggregate.Int(e.Host.CPUTotalMHz)},
		{Name: "cpu_CpuUsageMhz", Value: aggregate.Int(e.Host.CPUUsageMHz)},
		{Name: "mem_MemoryTotalMB", Value: wholeNumber(e.Host.MemoryTotalMB)},
		{Name: "mem_MemoryUsageMB", Value: wholeNumber(e.Host.MemoryUsageMB)},
	}
	return id
}

// wholeNumber rounds to zero decimal places and renders without a fraction
func wholeNumber(v float64) aggregate.Value {
	return aggregate.Int(int64(aggregate.Round(v, 0)))
}
