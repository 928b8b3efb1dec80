package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/gwillem/linetrace/pkg/bridge"
	"github.com/gwillem/linetrace/pkg/robot"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Baud int `long:"baud" default:"115200" description:"Serial baud rate of the I/O bridge"`
}

var (
	errNoBridge     = errors.New("no I/O bridge answered")
	errSetupAborted = errors.New("setup aborted")
)

type bridgeInfo struct {
	port    string
	version string
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("linetrace setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	fmt.Println("Scanning serial ports for an I/O bridge...")
	found := c.findBridges()

	port, err := selectBridge(found, askBridge)
	if errors.Is(err, errSetupAborted) {
		fmt.Println()
		fmt.Println(dimStyle.Render("Setup cancelled, nothing saved."))
		return nil
	}
	if err != nil {
		fmt.Println("Make sure the board is connected and running the bridge firmware.")
		return err
	}

	cfg := &robot.BridgeConfig{Port: port, BaudRate: c.Baud}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Bridge on %s saved to %s\n", port, robot.DefaultConfigFile)
	fmt.Println()
	fmt.Println("Start line following with: " + headerStyle.Render("linetrace run"))
	return nil
}

// selectBridge picks the only bridge found, or lets ask choose between
// several.
func selectBridge(found []bridgeInfo, ask func([]bridgeInfo) (string, error)) (string, error) {
	switch len(found) {
	case 0:
		return "", errNoBridge
	case 1:
		return found[0].port, nil
	}
	port, err := ask(found)
	if errors.Is(err, huh.ErrUserAborted) {
		return "", errSetupAborted
	}
	if err != nil {
		return "", fmt.Errorf("select bridge: %w", err)
	}
	return port, nil
}

func askBridge(found []bridgeInfo) (string, error) {
	var options []huh.Option[string]
	for _, b := range found {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (firmware %s)", b.port, b.version), b.port))
	}
	port := found[0].port
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which bridge drives the robot?").
				Options(options...).
				Value(&port),
		),
	)
	return port, form.Run()
}

func (c *SetupCommand) findBridges() []bridgeInfo {
	ports, err := bridge.Ports()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var found []bridgeInfo
	for _, port := range ports {
		b, err := bridge.Open(port, c.Baud, logger)
		if err != nil {
			logger.Debug("skip port", zap.String("port", port), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		version, err := b.Ping(ctx)
		cancel()
		b.Close()

		if err != nil {
			logger.Debug("no bridge on port", zap.String("port", port), zap.Error(err))
			continue
		}

		fmt.Printf("  Found bridge firmware %s on %s\n", version, port)
		found = append(found, bridgeInfo{port: port, version: version})
	}
	return found
}
