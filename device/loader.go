package device

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/auramarua/nextpnr/model"
)

// DeviceScenario is a small summary of what was loaded from JSON. It is
// mainly useful for logging from main().
type DeviceScenario struct {
	WireCount int
	PipCount  int
	NetCount  int
}

// internal JSON shapes - kept unexported so the format is free to evolve.
type deviceScenarioJSON struct {
	Grid  gridJSON  `json:"grid"`
	Wires []wireJSON `json:"wires"`
	Pips  []pipJSON  `json:"pips"`
	Nets  []netJSON  `json:"nets"`
}

type gridJSON struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type wireJSON struct {
	Name  string  `json:"name"`
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Delay float64 `json:"delay"`
}

type pipJSON struct {
	Name  string  `json:"name"`
	Src   string  `json:"src"`
	Dst   string  `json:"dst"`
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Delay float64 `json:"delay"`
}

type portJSON struct {
	Cell string `json:"cell"`
	Pin  string `json:"pin"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	// Wire names: the driver has exactly one source wire, a user has one
	// or more candidate sink wires.
	Wire  string   `json:"wire,omitempty"`
	Wires []string `json:"wires,omitempty"`
}

type netJSON struct {
	Name   string     `json:"name"`
	Global bool       `json:"global"`
	Driver *portJSON  `json:"driver"`
	Users  []portJSON `json:"users"`
}

// LoadScenario reads a JSON device description from r and populates a fresh
// Grid with wires, pips, and nets. It fails on structural errors: unknown
// wire names, duplicate IDs, off-grid locations.
func LoadScenario(r io.Reader) (*Grid, *DeviceScenario, error) {
	var payload deviceScenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	if payload.Grid.Width <= 0 || payload.Grid.Height <= 0 {
		return nil, nil, fmt.Errorf("LoadScenario: grid dimensions must be positive, got %dx%d",
			payload.Grid.Width, payload.Grid.Height)
	}

	grid := NewGrid(payload.Grid.Width, payload.Grid.Height)

	for _, jw := range payload.Wires {
		if jw.Name == "" {
			return nil, nil, fmt.Errorf("LoadScenario: wire with empty name")
		}
		if _, err := grid.AddWire(jw.Name, model.Coord{X: jw.X, Y: jw.Y}, jw.Delay); err != nil {
			return nil, nil, fmt.Errorf("LoadScenario: %w", err)
		}
	}

	for _, jp := range payload.Pips {
		src, ok := grid.WireByName(jp.Src)
		if !ok {
			return nil, nil, fmt.Errorf("LoadScenario: pip %q references unknown wire %q", jp.Name, jp.Src)
		}
		dst, ok := grid.WireByName(jp.Dst)
		if !ok {
			return nil, nil, fmt.Errorf("LoadScenario: pip %q references unknown wire %q", jp.Name, jp.Dst)
		}
		if _, err := grid.AddPip(jp.Name, src, dst, model.Coord{X: jp.X, Y: jp.Y}, jp.Delay); err != nil {
			return nil, nil, fmt.Errorf("LoadScenario: %w", err)
		}
	}

	for i, jn := range payload.Nets {
		net := &model.Net{
			ID:     model.NetID(i),
			Name:   jn.Name,
			Global: jn.Global,
		}
		if jn.Driver != nil {
			net.Driver = &model.PortRef{
				Cell: jn.Driver.Cell,
				Pin:  jn.Driver.Pin,
				Loc:  model.Coord{X: jn.Driver.X, Y: jn.Driver.Y},
			}
		}
		for _, ju := range jn.Users {
			net.Users = append(net.Users, model.PortRef{
				Cell: ju.Cell,
				Pin:  ju.Pin,
				Loc:  model.Coord{X: ju.X, Y: ju.Y},
			})
		}
		if err := grid.AddNet(net); err != nil {
			return nil, nil, fmt.Errorf("LoadScenario: %w", err)
		}

		if jn.Driver != nil && jn.Driver.Wire != "" {
			w, ok := grid.WireByName(jn.Driver.Wire)
			if !ok {
				return nil, nil, fmt.Errorf("LoadScenario: net %q driver references unknown wire %q", jn.Name, jn.Driver.Wire)
			}
			if err := grid.ConnectDriver(net.ID, w); err != nil {
				return nil, nil, fmt.Errorf("LoadScenario: %w", err)
			}
		}
		for _, ju := range jn.Users {
			var wires []model.WireID
			for _, name := range ju.Wires {
				w, ok := grid.WireByName(name)
				if !ok {
					return nil, nil, fmt.Errorf("LoadScenario: net %q user %s.%s references unknown wire %q",
						jn.Name, ju.Cell, ju.Pin, name)
				}
				wires = append(wires, w)
			}
			if len(wires) > 0 {
				if err := grid.ConnectSink(net.ID, ju.Cell, ju.Pin, wires...); err != nil {
					return nil, nil, fmt.Errorf("LoadScenario: %w", err)
				}
			}
		}
	}

	summary := &DeviceScenario{
		WireCount: len(payload.Wires),
		PipCount:  len(payload.Pips),
		NetCount:  len(payload.Nets),
	}
	return grid, summary, nil
}
