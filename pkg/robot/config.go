package robot

import (
	"encoding/json"
	"fmt"
	"os"
)

// Compiled-in tuning.
const (
	BaseSpeed     = 150 // straight-line duty (0-255)
	TurnAdjust    = 50  // duty added/removed per wheel while correcting
	LineThreshold = 500 // raw samples below this are on the line
)

// Pin assignments of the reference wiring.
const (
	SensorLeftChannel   = 0 // A0
	SensorCenterChannel = 1 // A1
	SensorRightChannel  = 2 // A2

	MotorLeftPWMPin  = 9
	MotorRightPWMPin = 10
	MotorLeftDirPin  = 8
	MotorRightDirPin = 11
)

// Pins holds the sensor channel and motor pin assignments.
type Pins struct {
	SensorLeft   int
	SensorCenter int
	SensorRight  int

	MotorLeftPWM  int
	MotorRightPWM int
	MotorLeftDir  int
	MotorRightDir int
}

// Config is the controller configuration. It is built once at startup and
// passed by value; nothing mutates it afterwards.
type Config struct {
	Pins          Pins
	BaseSpeed     int
	TurnAdjust    int
	LineThreshold int
}

// DefaultConfig returns the compiled-in configuration.
func DefaultConfig() Config {
	return Config{
		Pins: Pins{
			SensorLeft:    SensorLeftChannel,
			SensorCenter:  SensorCenterChannel,
			SensorRight:   SensorRightChannel,
			MotorLeftPWM:  MotorLeftPWMPin,
			MotorRightPWM: MotorRightPWMPin,
			MotorLeftDir:  MotorLeftDirPin,
			MotorRightDir: MotorRightDirPin,
		},
		BaseSpeed:     BaseSpeed,
		TurnAdjust:    TurnAdjust,
		LineThreshold: LineThreshold,
	}
}

const (
	DefaultConfigFile = "linetrace.json"
	DefaultBaudRate   = 115200
)

// BridgeConfig records where the I/O bridge board is attached. Control
// tuning is never read from this file.
type BridgeConfig struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate,omitempty"`
}

// Baud returns the configured baud rate, or DefaultBaudRate when unset.
func (b *BridgeConfig) Baud() int {
	if b.BaudRate <= 0 {
		return DefaultBaudRate
	}
	return b.BaudRate
}

// IsConfigured returns true if a serial port has been chosen
func (b *BridgeConfig) IsConfigured() bool {
	return b.Port != ""
}

// LoadConfig loads the bridge configuration from the default config file
func LoadConfig() (*BridgeConfig, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads the bridge configuration from a specific file
func LoadConfigFrom(path string) (*BridgeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg BridgeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save saves the bridge configuration to the default config file
func (b *BridgeConfig) Save() error {
	return b.SaveTo(DefaultConfigFile)
}

// SaveTo saves the bridge configuration to a specific file
func (b *BridgeConfig) SaveTo(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
