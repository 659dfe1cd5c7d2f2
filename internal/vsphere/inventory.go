package vsphere

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25/mo"
	"go.uber.org/zap"

	"github.com/aaronlmathis/vsflux/internal/entity"
)

const bytesPerMB = 1024 * 1024

const bytesPerGB = 1024 * 1024 * 1024

// Entities enumerates hosts first, then guests, each in the order the
// container view returns them. Templates are not monitored.
func (s *Session) Entities(ctx context.Context) ([]entity.MonitoredEntity, error) {
	v, err := view.NewManager(s.client).CreateContainerView(ctx, s.root, []string{"HostSystem", "VirtualMachine"}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create container view: %w", err)
	}
	defer func() {
		if err := v.Destroy(context.Background()); err != nil {
			s.logger.Debug("Failed to destroy container view", zap.Error(err))
		}
	}()

	var hosts []mo.HostSystem
	if err := v.Retrieve(ctx, []string{"HostSystem"}, []string{"name", "summary"}, &hosts); err != nil {
		return nil, fmt.Errorf("failed to retrieve hosts: %w", err)
	}

	var vms []mo.VirtualMachine
	if err := v.Retrieve(ctx, []string{"VirtualMachine"}, []string{"name", "summary"}, &vms); err != nil {
		return nil, fmt.Errorf("failed to retrieve virtual machines: %w", err)
	}

	hostNames := make(map[string]string, len(hosts))
	entities := make([]entity.MonitoredEntity, 0, len(hosts)+len(vms))

	for _, h := range hosts {
		hostNames[h.Self.Value] = h.Name
		e := hostToEntity(h)
		e.Ref = s.remember(h.Self)
		entities = append(entities, e)
	}

	for _, vm := range vms {
		if vm.Summary.Config.Template {
			continue
		}
		e := vmToEntity(vm, hostNames)
		e.Ref = s.remember(vm.Self)
		entities = append(entities, e)
	}

	s.logger.Debug("Retrieved inventory",
		zap.Int("hosts", len(hosts)),
		zap.Int("guests", len(entities)-len(hosts)))

	return entities, nil
}

func hostToEntity(h mo.HostSystem) entity.MonitoredEntity {
	e := entity.MonitoredEntity{
		Name:       h.Name,
		Kind:       entity.Host,
		PowerState: entity.Unknown,
	}

	if rt := h.Summary.Runtime; rt != nil {
		e.PowerState = entity.PowerState(rt.PowerState)
	}
	if hw := h.Summary.Hardware; hw != nil {
		e.Host.NumCPU = int(hw.NumCpuThreads)
		e.Host.CPUTotalMHz = int64(hw.CpuMhz) * int64(hw.NumCpuCores)
		e.Host.MemoryTotalMB = float64(hw.MemorySize) / bytesPerMB
	}
	e.Host.CPUUsageMHz = int64(h.Summary.QuickStats.OverallCpuUsage)
	e.Host.MemoryUsageMB = float64(h.Summary.QuickStats.OverallMemoryUsage)

	return e
}

func vmToEntity(vm mo.VirtualMachine, hostNames map[string]string) entity.MonitoredEntity {
	e := entity.MonitoredEntity{
		Name:       vm.Name,
		Kind:       entity.Guest,
		PowerState: entity.PowerState(vm.Summary.Runtime.PowerState),
		Guest: entity.GuestSizing{
			NumCPU:   int(vm.Summary.Config.NumCpu),
			MemoryMB: float64(vm.Summary.Config.MemorySizeMB),
		},
	}
	if e.PowerState == "" {
		e.PowerState = entity.Unknown
	}

	if host := vm.Summary.Runtime.Host; host != nil {
		e.ParentHostName = hostNames[host.Value]
	}

	if st := vm.Summary.Storage; st != nil {
		e.Guest.ProvisionedGB = float64(st.Committed+st.Uncommitted) / bytesPerGB
		e.Guest.UsedGB = float64(st.Committed) / bytesPerGB
	}

	return e
}
