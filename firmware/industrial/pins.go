//go:build tinygo

package main

import "machine"

const (
	// Status lamps
	PIN_LED_GREEN  = machine.GPIO25
	PIN_LED_YELLOW = machine.GPIO26
	PIN_LED_RED    = machine.GPIO27

	// Piezo buzzer
	PIN_BUZZER = machine.GPIO14

	// Relay coil; high keeps the equipment powered
	PIN_RELAY = machine.GPIO13

	// DS18B20 data line (4.7k pull-up to 3.3V)
	PIN_ONEWIRE = machine.GPIO4

	// HC-SR04
	PIN_TRIG = machine.GPIO5
	PIN_ECHO = machine.GPIO18

	// MPU6050 on I2C0
	PIN_SDA = machine.GPIO21
	PIN_SCL = machine.GPIO22

	// DS18B20 conversion time at 12-bit resolution
	CONVERSION_TIME_MS = 750
)
