//go:build tinygo

package main

import "machine"

const (
	// DHT22 data line
	PIN_DHT = machine.GPIO4

	// Light sensor standing in for a pH probe
	PIN_PH = machine.GPIO34

	// Nutrient switches, wired to ground with pull-ups
	PIN_PHOSPHORUS = machine.GPIO32
	PIN_POTASSIUM  = machine.GPIO33

	// Pump relay
	PIN_PUMP = machine.GPIO12

	// 20x4 LCD backpack on I2C0
	PIN_SDA  = machine.GPIO21
	PIN_SCL  = machine.GPIO22
	LCD_ADDR = 0x27
)
