package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/fieldwatch/pkg/config"
	"github.com/itohio/fieldwatch/pkg/history"
	"github.com/itohio/fieldwatch/pkg/link"
	"github.com/itohio/fieldwatch/pkg/panel"
	"github.com/itohio/fieldwatch/pkg/telemetry"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a simulated board instead of the serial port")
		kindFlag   = flag.String("kind", "", "Board kind to display: industrial or irrigation (default: mock.kind)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *kindFlag != "" {
		cfg.Mock.Kind = *kindFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	kind := telemetry.Kind(cfg.Mock.Kind)

	application := app.NewWithID("com.itohio.fieldwatch")
	window := application.NewWindow("Field Watch")
	window.Resize(fyne.NewSize(1100, 650))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		kind:       kind,
		history:    history.New(cfg.History.Window),
		window:     window,
		useMock:    *mockFlag,
		log:        slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}

	quantities := panel.Quantities(kind)
	state.trend = panel.NewTrend(cfg, quantities[0])
	state.board = panel.NewBoard(kind, cfg.Irrigation.DryBelow)

	// Register once; the history outlives connections.
	state.history.OnUpdate(state.onHistoryUpdate)

	content := container.NewBorder(
		createToolbar(state, quantities),
		nil,
		container.NewPadded(state.board.Object()),
		nil,
		state.trend,
	)

	window.SetContent(content)
	window.SetOnClosed(func() {
		closeChain(state.chain)
	})
	window.ShowAndRun()
}

// chain tracks the running pipeline for graceful shutdown.
type chain struct {
	device      link.Device
	historyDone chan struct{} // Closed when ProcessReports returns
}

type appState struct {
	cfg        *config.Config
	configPath string
	kind       telemetry.Kind
	history    *history.History
	trend      *panel.Trend
	board      *panel.Board
	window     fyne.Window
	connectBtn *widget.Button
	status     *widget.Label
	useMock    bool
	log        *slog.Logger
	chain      *chain

	// Throttling for widget updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the Connect and Settings buttons and the quantity
// selector.
func createToolbar(state *appState, quantities []panel.Quantity) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	names := make([]string, len(quantities))
	byName := make(map[string]panel.Quantity, len(quantities))
	for i, q := range quantities {
		names[i] = q.String()
		byName[names[i]] = q
	}
	quantitySelect := widget.NewSelect(names, func(selected string) {
		q, ok := byName[selected]
		if !ok || q == state.trend.Quantity() {
			return
		}
		state.trend.SetQuantity(q)
		state.trend.Update(state.history.Reports(), state.history.Episodes())
	})
	quantitySelect.SetSelected(names[0])

	state.status = widget.NewLabel("Disconnected")

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(connectBtn, settingsBtn, state.status),
		quantitySelect,
		nil,
	)
}

// onHistoryUpdate runs on the history goroutine. It throttles to ~30 FPS and
// hands the copied data to the main thread.
func (state *appState) onHistoryUpdate(reports []telemetry.Report, episodes []history.Episode) {
	const updateInterval = 33 * time.Millisecond

	state.updateMu.Lock()
	now := time.Now()
	if now.Sub(state.lastUpdateTime) < updateInterval {
		state.updateMu.Unlock()
		return
	}
	state.lastUpdateTime = now
	state.updateMu.Unlock()

	latest, ok := state.history.Latest(state.kind)
	fyne.Do(func() {
		state.trend.Update(reports, episodes)
		if ok {
			state.board.Update(latest)
		}
	})
}

// closeChain closes the device and waits for the history to drain.
func closeChain(c *chain) {
	if c == nil {
		return
	}
	if c.device != nil {
		c.device.Close()
	}
	if c.historyDone != nil {
		<-c.historyDone
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.chain != nil && state.chain.device.IsConnected() {
		closeChain(state.chain)
		state.chain = nil
		state.status.SetText("Disconnected")
		state.log.Info("disconnected")
		return
	}

	var device link.Device
	if state.useMock {
		device = link.NewMock(state.cfg, state.log)
	} else {
		device = link.New(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, link.DefaultBufferSize, state.log)
	}

	if err := device.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to start simulated board: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}

	if state.useMock {
		state.status.SetText("Simulated " + string(state.kind))
	} else {
		state.status.SetText("Connected: " + state.cfg.Serial.Port)
	}
	state.log.Info("connected", "mock", state.useMock, "port", state.cfg.Serial.Port)

	// Reset history shutdown flag for the new chain
	state.history.ResetShutdown()

	historyDone := make(chan struct{})
	go func() {
		defer close(historyDone)
		state.history.ProcessReports(device.Reports())
	}()

	state.chain = &chain{device: device, historyDone: historyDone}
}
