package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/fieldwatch/pkg/link"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createIndustrialTab(state),
		createIrrigationTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig validates and writes the configuration, reporting failures in
// a dialog.
func saveConfig(state *appState) {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
		return
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

func createSerialTab(state *appState) *container.TabItem {
	ports, err := link.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected == "" {
				return
			}
			selectedPort := portMap[portSelect.Selected]
			if selectedPort == "" {
				selectedPort = portSelect.Selected
			}
			baud := state.cfg.Serial.BaudRate
			if b, err := strconv.Atoi(baudEntry.Text); err == nil && b > 0 {
				baud = b
			}

			changed := state.cfg.Serial.Port != selectedPort || state.cfg.Serial.BaudRate != baud
			wasConnected := state.chain != nil && state.chain.device.IsConnected()

			state.cfg.Serial.Port = selectedPort
			state.cfg.Serial.BaudRate = baud
			saveConfig(state)

			// Reconnect on the new port
			if changed && wasConnected && !state.useMock {
				closeChain(state.chain)
				state.chain = nil
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// floatEntry binds an entry to a float32 field.
type floatEntry struct {
	entry *widget.Entry
	dst   *float32
}

func newFloatEntry(dst *float32, decimals int) floatEntry {
	e := widget.NewEntry()
	e.SetText(strconv.FormatFloat(float64(*dst), 'f', decimals, 32))
	return floatEntry{entry: e, dst: dst}
}

func (f floatEntry) apply() {
	if v, err := strconv.ParseFloat(f.entry.Text, 32); err == nil {
		*f.dst = float32(v)
	}
}

func createIndustrialTab(state *appState) *container.TabItem {
	in := &state.cfg.Industrial
	fields := []struct {
		label string
		entry floatEntry
	}{
		{"Temperature Warning (°C)", newFloatEntry(&in.TempWarning, 1)},
		{"Temperature Critical (°C)", newFloatEntry(&in.TempCritical, 1)},
		{"Temperature Shutdown (°C)", newFloatEntry(&in.TempShutdown, 1)},
		{"Vibration Warning (g)", newFloatEntry(&in.VibWarning, 2)},
		{"Vibration Critical (g)", newFloatEntry(&in.VibCritical, 2)},
		{"Distance Min (cm)", newFloatEntry(&in.DistMin, 1)},
		{"Distance Warning Low (cm)", newFloatEntry(&in.DistWarningLow, 1)},
		{"Distance Warning High (cm)", newFloatEntry(&in.DistWarningHigh, 1)},
		{"Distance Max (cm)", newFloatEntry(&in.DistMax, 1)},
	}

	form := &widget.Form{
		OnSubmit: func() {
			for _, f := range fields {
				f.entry.apply()
			}
			saveConfig(state)
			// Redraw the limit lines.
			state.trend.SetQuantity(state.trend.Quantity())
			state.trend.Update(state.history.Reports(), state.history.Episodes())
		},
	}
	for _, f := range fields {
		form.Append(f.label, f.entry.entry)
	}

	return container.NewTabItem("Industrial", form)
}

func createIrrigationTab(state *appState) *container.TabItem {
	dry := newFloatEntry(&state.cfg.Irrigation.DryBelow, 1)

	scale := widget.NewSelect([]string{"fine", "coarse"}, nil)
	scale.SetSelected(state.cfg.Irrigation.PHScale)

	activeLow := widget.NewCheck("", nil)
	activeLow.SetChecked(state.cfg.Irrigation.SwitchesActiveLow)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Pump Below Humidity (%)", Widget: dry.entry},
			{Text: "pH Scale", Widget: scale},
			{Text: "Switches Active Low", Widget: activeLow},
		},
		OnSubmit: func() {
			dry.apply()
			if scale.Selected != "" {
				state.cfg.Irrigation.PHScale = scale.Selected
			}
			state.cfg.Irrigation.SwitchesActiveLow = activeLow.Checked
			saveConfig(state)
		},
	}

	return container.NewTabItem("Irrigation", form)
}

func createMockTab(state *appState) *container.TabItem {
	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	driftEntry := widget.NewEntry()
	driftEntry.SetText(state.cfg.Mock.Drift.String())

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(strconv.FormatFloat(state.cfg.Mock.NoiseLevel, 'f', 3, 64))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Cycle Period", Widget: sampleRateEntry},
			{Text: "Drift Period", Widget: driftEntry},
			{Text: "Noise Level", Widget: noiseLevelEntry},
		},
		OnSubmit: func() {
			if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil {
				state.cfg.Mock.SampleRate = sr
			}
			if d, err := time.ParseDuration(driftEntry.Text); err == nil {
				state.cfg.Mock.Drift = d
			}
			if nl, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = nl
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Mock", form)
}
