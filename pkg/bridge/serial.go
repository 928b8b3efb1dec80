package bridge

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// ReadTimeout bounds how long a single response may take.
const ReadTimeout = 100 * time.Millisecond

// Open opens the bridge on a serial port (8N1).
func Open(portName string, baudRate int, logger *zap.Logger) (*Bridge, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	return New(port, logger), nil
}

// Ports lists candidate serial ports, skipping Bluetooth ports on macOS.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}

	var out []string
	for _, p := range ports {
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
