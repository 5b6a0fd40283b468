// Package discwatch triggers rips when audio media is inserted.
//
// It listens to kernel udev events over netlink, so no udev rule or root
// helper is required. Only events for the configured drive are considered and
// insertions that arrive while a rip is still running are ignored.
package discwatch
