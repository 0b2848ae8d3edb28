package sink

import (
	"fmt"

	"github.com/drgolem/go-portaudio/portaudio"
)

// DeviceInfo describes one enumerated output-capable audio device.
type DeviceInfo struct {
	Index int
	Name  string
}

// ListOutputDevices enumerates every device with at least one output
// channel. Devices that report an empty name get a synthetic
// "Unknown Device N" label so they remain selectable by name. Initializes
// and tears down the PortAudio host API for the duration of the call, so it
// is safe to use standalone (e.g. for a list-available-speakers CLI
// subcommand) without an open stream.
func ListOutputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio initialize: %w", err)
	}
	defer portaudio.Terminate()
	return enumerateOutputDevices()
}

// enumerateOutputDevices assumes PortAudio is already initialized by the
// caller (Build holds the host API open across device resolution and stream
// creation).
func enumerateOutputDevices() ([]DeviceInfo, error) {
	count, err := portaudio.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("portaudio device count: %w", err)
	}

	var out []DeviceInfo
	for i := 0; i < count; i++ {
		info, err := portaudio.DeviceInfo(i)
		if err != nil {
			continue
		}
		if info.MaxOutputChannels <= 0 {
			continue
		}
		name := info.Name
		if name == "" {
			name = fmt.Sprintf("Unknown Device %d", i)
		}
		out = append(out, DeviceInfo{Index: i, Name: name})
	}
	return out, nil
}

// findDeviceByName resolves name to a device index via an exact (or
// synthetic-fallback) name match, assuming PortAudio is already
// initialized.
func findDeviceByName(name string) (int, error) {
	devices, err := enumerateOutputDevices()
	if err != nil {
		return 0, err
	}
	for _, d := range devices {
		if d.Name == name {
			return d.Index, nil
		}
	}
	return 0, fmt.Errorf("no output device named %q", name)
}

// defaultOutputDevice resolves the host's default output device index.
func defaultOutputDevice() (int, error) {
	idx, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return 0, fmt.Errorf("portaudio default output device: %w", err)
	}
	return idx, nil
}
