package describe

import (
	"context"
	"fmt"
	"time"

	"github.com/huin/goupnp"
	"go.uber.org/zap"

	"github.com/muurk/ssdpscan/internal/logging"
	"github.com/muurk/ssdpscan/internal/ssdp"
)

// DefaultTimeout bounds a single description fetch
const DefaultTimeout = 3 * time.Second

// Description is the summary of a UPnP root device description document
type Description struct {
	Location     string   `json:"location"`
	FriendlyName string   `json:"friendly_name,omitempty"`
	DeviceType   string   `json:"device_type,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	ModelName    string   `json:"model_name,omitempty"`
	ModelNumber  string   `json:"model_number,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	UDN          string   `json:"udn,omitempty"`
	Services     []string `json:"services,omitempty"`
}

// String returns a one-line summary
func (d *Description) String() string {
	name := d.FriendlyName
	if name == "" {
		name = d.UDN
	}
	if d.ModelName == "" {
		return name
	}
	return fmt.Sprintf("%s (%s %s)", name, d.Manufacturer, d.ModelName)
}

// Describer fetches device descriptions for discovered devices
type Describer struct {
	// Timeout bounds each fetch (0: no limit beyond the caller's context)
	Timeout time.Duration
}

// NewDescriber creates a describer with default settings
func NewDescriber() *Describer {
	return &Describer{Timeout: DefaultTimeout}
}

// Describe fetches and summarizes the description document at the device's LOCATION
func (d *Describer) Describe(ctx context.Context, device *ssdp.Device) (*Description, error) {
	loc, err := device.LocationURL()
	if err != nil {
		return nil, ssdp.NewDescribeError(device.Location, err)
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	root, err := goupnp.DeviceByURLCtx(ctx, loc)
	if err != nil {
		return nil, ssdp.NewDescribeError(loc.String(), err)
	}

	desc := &Description{
		Location:     loc.String(),
		FriendlyName: root.Device.FriendlyName,
		DeviceType:   root.Device.DeviceType,
		Manufacturer: root.Device.Manufacturer,
		ModelName:    root.Device.ModelName,
		ModelNumber:  root.Device.ModelNumber,
		SerialNumber: root.Device.SerialNumber,
		UDN:          root.Device.UDN,
	}
	root.Device.VisitServices(func(s *goupnp.Service) {
		desc.Services = append(desc.Services, s.ServiceType)
	})

	logging.Debug("Fetched device description",
		zap.String("location", desc.Location),
		zap.String("friendly_name", desc.FriendlyName),
		zap.Int("services", len(desc.Services)),
	)
	return desc, nil
}

// Result pairs a device with its description or the error fetching it
type Result struct {
	Device      *ssdp.Device
	Description *Description
	Err         error
}

// DescribeAll describes every device in order. A failed fetch is recorded in
// its Result and does not stop the others.
func (d *Describer) DescribeAll(ctx context.Context, devices []*ssdp.Device) []Result {
	results := make([]Result, 0, len(devices))
	for _, device := range devices {
		desc, err := d.Describe(ctx, device)
		if err != nil {
			logging.Warn("Device description unavailable",
				zap.String("addr", device.Addr),
				zap.Error(err),
			)
		}
		results = append(results, Result{Device: device, Description: desc, Err: err})
	}
	return results
}
