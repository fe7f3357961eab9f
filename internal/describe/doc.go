// Package describe fetches UPnP device description documents for devices
// found by SSDP discovery.
//
// A discovered device advertises the URL of its description document in the
// LOCATION header. Describer downloads and decodes that document with
// github.com/huin/goupnp and reduces it to a Description: friendly name,
// manufacturer, model, UDN, device type and the service types of the root
// device and all embedded devices.
//
// Failures are reported as ssdp.DiscoveryError values of type
// ssdp.ErrTypeDescribe. DescribeAll records a failure per device and keeps
// going, so one unreachable device never hides the others.
package describe
