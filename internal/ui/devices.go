package ui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/ssdpscan/internal/describe"
	"github.com/muurk/ssdpscan/internal/ssdp"
)

// DeviceView is a discovered device with its optional description
type DeviceView struct {
	Device      *ssdp.Device
	Description *describe.Description
	DescribeErr error
}

// ViewsFromDevices wraps devices that were not described
func ViewsFromDevices(devices []*ssdp.Device) []DeviceView {
	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, DeviceView{Device: d})
	}
	return views
}

// ViewsFromResults wraps describe results
func ViewsFromResults(results []describe.Result) []DeviceView {
	views := make([]DeviceView, 0, len(results))
	for _, r := range results {
		views = append(views, DeviceView{Device: r.Device, Description: r.Description, DescribeErr: r.Err})
	}
	return views
}

// RenderDeviceCard renders one device as a bordered card. index is 1-based;
// 0 omits the number.
func RenderDeviceCard(v DeviceView, index int, width int) string {
	d := v.Device

	title := d.IP
	if v.Description != nil {
		title = v.Description.String() + "  " + lipgloss.NewStyle().Foreground(MutedColor).Render(d.IP)
	}
	if index > 0 {
		title = fmt.Sprintf("#%d  %s", index, title)
	}

	details := []Detail{
		{"Address", d.Addr},
		{"Type", d.ServiceType},
		{"USN", d.USN},
		{"Location", d.Location},
		{"Server", d.Server},
	}
	if maxAge, ok := d.MaxAge(); ok {
		details = append(details, Detail{"Max-Age", maxAge.String()})
	}
	if desc := v.Description; desc != nil {
		details = append(details,
			Detail{"Device type", desc.DeviceType},
			Detail{"Model number", desc.ModelNumber},
			Detail{"Serial", desc.SerialNumber},
			Detail{"UDN", desc.UDN},
			Detail{"Services", strings.Join(desc.Services, "\n")},
		)
	}

	lines := append([]string{DeviceTitleStyle.Render(title)}, renderDetails(details)...)
	if v.DescribeErr != nil {
		lines = append(lines, lipgloss.NewStyle().Foreground(WarningColor).
			Render(WarningMarker+"  description unavailable: "+v.DescribeErr.Error()))
	}

	return CardStyle(width).Render(strings.Join(lines, "\n"))
}

// RenderDeviceLine renders one device on a single line
func RenderDeviceLine(v DeviceView) string {
	d := v.Device
	fields := []string{CompactAddrStyle.Render(d.Addr)}
	if d.ServiceType != "" {
		fields = append(fields, d.ServiceType)
	}
	if d.Location != "" {
		fields = append(fields, d.Location)
	}
	if v.Description != nil {
		fields = append(fields, "("+v.Description.String()+")")
	}
	return strings.Join(fields, "  ")
}

// RenderDevices renders a device list in the detailed or compact format,
// followed by a summary line.
func RenderDevices(views []DeviceView, compact bool, elapsed time.Duration, width int) string {
	var b strings.Builder
	for i, v := range views {
		if compact {
			b.WriteString(RenderDeviceLine(v))
		} else {
			b.WriteString(RenderDeviceCard(v, i+1, width))
		}
		b.WriteString("\n")
	}
	b.WriteString(SummaryStyle.Render(summary(len(views), elapsed)))
	return b.String()
}

func summary(n int, elapsed time.Duration) string {
	noun := "devices"
	if n == 1 {
		noun = "device"
	}
	return fmt.Sprintf("Found %d %s in %s", n, noun, elapsed.Round(time.Millisecond))
}

// jsonView is the JSON shape of a DeviceView
type jsonView struct {
	*ssdp.Device
	Description   *describe.Description `json:"description,omitempty"`
	DescribeError string                `json:"describe_error,omitempty"`
}

// MarshalDevicesJSON renders the views as an indented JSON array.
// An empty list is rendered as [].
func MarshalDevicesJSON(views []DeviceView) ([]byte, error) {
	out := make([]jsonView, 0, len(views))
	for _, v := range views {
		jv := jsonView{Device: v.Device, Description: v.Description}
		if v.DescribeErr != nil {
			jv.DescribeError = v.DescribeErr.Error()
		}
		out = append(out, jv)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal devices: %w", err)
	}
	return data, nil
}
