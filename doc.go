// Package linetrace provides a three-sensor line follower for two-wheeled
// differential-drive robots.
//
// Each control cycle reads three reflectance sensors, classifies them
// against a fixed threshold, picks a pair of wheel speeds by a fixed-priority
// policy and drives both motors through a single clamp-and-forward step.
//
// # Installation
//
//	go install github.com/gwillem/linetrace/cmd/linetrace@latest
//
// # Usage
//
// Find the I/O bridge board and remember its serial port:
//
//	linetrace setup
//
// Then start following the line:
//
//	linetrace run
//
// Without hardware, drive a simulated robot around a built-in track:
//
//	linetrace sim --track oval
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/linetrace: CLI with setup, run and sim commands
//   - pkg/robot: Sensor reader, drivetrain and configuration
//   - pkg/control: Decision policy and control loop
//   - pkg/bridge: Serial protocol of the I/O bridge board
//   - pkg/telemetry: Best-effort telemetry to HTTP and SQLite sinks
//   - pkg/sim: Simulated robot and tracks
package linetrace
