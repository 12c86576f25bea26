//go:build linux

package ble

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"
)

const bluezBusName = "org.bluez"

var (
	adapter        = bluetooth.DefaultAdapter
	bluezPresentFn = bluezPresent
)

// bluezPresent fails fast with a readable error when bluetoothd is not on
// the system bus; the adapter would otherwise fail deep inside D-Bus calls.
func bluezPresent() error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("ble: system bus: %w", err)
	}
	defer conn.Close()

	var has bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, bluezBusName).Store(&has); err != nil {
		return fmt.Errorf("ble: query %s: %w", bluezBusName, err)
	}
	if !has {
		return fmt.Errorf("ble: bluetoothd is not running (%s not on the system bus)", bluezBusName)
	}
	return nil
}

func startStack(name string, onWrite func(offset int, value []byte)) (stopFunc, error) {
	if err := bluezPresentFn(); err != nil {
		return nil, err
	}
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}
	svc, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: service uuid: %w", err)
	}
	chr, err := bluetooth.ParseUUID(WriteCharUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: characteristic uuid: %w", err)
	}

	var handle bluetooth.Characteristic
	err = adapter.AddService(&bluetooth.Service{
		UUID: svc,
		Characteristics: []bluetooth.CharacteristicConfig{{
			Handle: &handle,
			UUID:   chr,
			Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
			WriteEvent: func(_ bluetooth.Connection, offset int, value []byte) {
				onWrite(offset, value)
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("ble: add service: %w", err)
	}

	adv := adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{svc},
	}); err != nil {
		return nil, fmt.Errorf("ble: configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return nil, fmt.Errorf("ble: start advertisement: %w", err)
	}
	return adv.Stop, nil
}
